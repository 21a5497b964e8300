package models

import (
	"time"
)

// EmailMetadata records which key encrypted which message, so a recipient
// client can locate the pad for a given email. Only hashes and references
// are stored, never message content.
type EmailMetadata struct {
	ID             uint   `gorm:"primaryKey"`
	EmailID        string `gorm:"not null;uniqueIndex"`
	SenderEmail    string `gorm:"not null;index"`
	RecipientEmail string `gorm:"not null;index"`
	KeyID          string `gorm:"not null;index"`
	SubjectHash    string
	IPFSCid        string `gorm:"column:ipfs_cid"`
	TxHash         string
	CreatedAt      time.Time
}

func (EmailMetadata) TableName() string {
	return "email_metadata"
}
