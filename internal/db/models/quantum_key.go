package models

import (
	"time"
)

type KeyStatus string

const (
	StatusUnused  KeyStatus = "unused"
	StatusUsed    KeyStatus = "used"
	StatusExpired KeyStatus = "expired"
)

// QuantumKey is one holder's copy of a key. Sharing duplicates the row for
// the recipient, so (KeyID, Holder) is the unit of lifecycle: each copy is
// consumed and expired independently. No gorm.Model here: soft deletes would
// let a deleted row keep occupying the unique index and shadow the
// conditional status updates.
type QuantumKey struct {
	ID            uint      `gorm:"primaryKey"`
	KeyID         string    `gorm:"not null;uniqueIndex:idx_key_holder"`
	Holder        string    `gorm:"not null;uniqueIndex:idx_key_holder"`
	KeyBytes      []byte    `gorm:"type:bytea;not null"` // sealed, never plaintext
	KeyLength     int       `gorm:"not null"`            // bits
	Status        KeyStatus `gorm:"not null;default:'unused'"`
	Protocol      string    `gorm:"not null"`
	CreatedAt     time.Time
	ExpiresAt     time.Time `gorm:"not null;index"`
	CreatedFor    string    `gorm:"index"`
	SharedBy      string
	UsedBy        string
	UsedAt        *time.Time
	HashStored    bool `gorm:"not null;default:false"`
	LedgerTxRef   string
	LedgerNetwork string
}

func (QuantumKey) TableName() string {
	return "quantum_keys"
}
