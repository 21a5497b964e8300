// Package keystore persists per-holder key copies and owns every status
// transition. Transitions are expressed as conditional updates so that two
// racing callers can never both win; the store never writes a status it
// derived from previously read state.
package keystore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/internal/keywrap"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// Store wraps the database handle and the at-rest cipher. Key material is
// sealed before it reaches a row and unsealed only on the way out.
type Store struct {
	db     *gorm.DB
	cipher *keywrap.Cipher
	logger *zap.Logger
}

func New(database *gorm.DB, cipher *keywrap.Cipher, logger *zap.Logger) *Store {
	return &Store{
		db:     database,
		cipher: cipher,
		logger: logger.With(zap.String("service", "keystore")),
	}
}

// NewKey describes the copy created for the original requester of a key.
type NewKey struct {
	KeyID     string
	Holder    string
	KeyBytes  []byte
	KeyLength int
	Protocol  string
	ExpiresAt time.Time
}

// Copy is one holder's view of a key with the material unsealed.
type Copy struct {
	KeyID         string
	Holder        string
	KeyBytes      []byte
	KeyLength     int
	Status        models.KeyStatus
	Protocol      string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CreatedFor    string
	SharedBy      string
	UsedBy        string
	UsedAt        *time.Time
	HashStored    bool
	LedgerTxRef   string
	LedgerNetwork string
}

// HolderKey is the listing projection. It never includes key material.
type HolderKey struct {
	KeyID      string
	Status     models.KeyStatus
	KeyLength  int
	Protocol   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	HashStored bool
}

// Stats aggregates a holder's copies by effective status.
type Stats struct {
	Total   int64
	Unused  int64
	Used    int64
	Expired int64
}

// Insert seals the material and creates the first copy of a key. A
// duplicate (key_id, holder) pair reports Conflict.
func (s *Store) Insert(ctx context.Context, rec NewKey) error {
	sealed, err := s.cipher.Seal(rec.KeyBytes)
	if err != nil {
		return err
	}

	row := models.QuantumKey{
		KeyID:      rec.KeyID,
		Holder:     rec.Holder,
		KeyBytes:   sealed,
		KeyLength:  rec.KeyLength,
		Status:     models.StatusUnused,
		Protocol:   rec.Protocol,
		ExpiresAt:  rec.ExpiresAt,
		CreatedFor: rec.Holder,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return keyerrors.New(keyerrors.KindConflict, "key copy already exists")
		}
		return s.storageError("insert", err)
	}
	return nil
}

// GetCopy loads one holder's copy with the material unsealed. A copy past
// its expiry is reported Expired and flipped on the way, so readers observe
// expiry the moment the wall clock passes it. Used copies are returned as
// data; the caller decides how to present them.
func (s *Store) GetCopy(ctx context.Context, keyID, holder string, now time.Time) (*Copy, error) {
	var row models.QuantumKey
	err := s.db.WithContext(ctx).
		Where("key_id = ? AND holder = ?", keyID, holder).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, keyerrors.New(keyerrors.KindNotFound, "Key not found or access denied")
	}
	if err != nil {
		return nil, s.storageError("get", err)
	}

	if row.Status == models.StatusExpired {
		return nil, keyerrors.New(keyerrors.KindExpired, "Key not found or access denied")
	}
	if row.Status == models.StatusUnused && !row.ExpiresAt.After(now) {
		s.lazyExpire(ctx, keyID, holder)
		return nil, keyerrors.New(keyerrors.KindExpired, "Key not found or access denied")
	}

	return s.toCopy(&row)
}

// GetAnyCopy loads the oldest copy of a key regardless of holder. Used for
// fingerprinting, where every copy carries identical material.
func (s *Store) GetAnyCopy(ctx context.Context, keyID string) (*Copy, error) {
	var row models.QuantumKey
	err := s.db.WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("id ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, keyerrors.New(keyerrors.KindNotFound, "Key not found or access denied")
	}
	if err != nil {
		return nil, s.storageError("get_any", err)
	}

	return s.toCopy(&row)
}

// CompareAndSetStatus moves one copy from status `from` to status `to` in a
// single conditional update. When the target is used, the update also
// requires the copy to be inside its validity window and stamps the
// consumer. A miss is classified with one follow-up read.
func (s *Store) CompareAndSetStatus(ctx context.Context, keyID, holder string, from, to models.KeyStatus, actor string, now time.Time) error {
	updates := map[string]any{"status": to}
	if to == models.StatusUsed {
		updates["used_by"] = actor
		updates["used_at"] = now
	}

	tx := s.db.WithContext(ctx).
		Model(&models.QuantumKey{}).
		Where("key_id = ? AND holder = ? AND status = ?", keyID, holder, from)
	if to == models.StatusUsed {
		tx = tx.Where("expires_at > ?", now)
	}

	res := tx.Updates(updates)
	if res.Error != nil {
		return s.storageError("compare_and_set", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.classifyMiss(ctx, keyID, holder, now)
}

// classifyMiss explains why a conditional update matched nothing. The read
// is diagnostic only; it never feeds another write decision.
func (s *Store) classifyMiss(ctx context.Context, keyID, holder string, now time.Time) error {
	var row models.QuantumKey
	err := s.db.WithContext(ctx).
		Select("status", "expires_at").
		Where("key_id = ? AND holder = ?", keyID, holder).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return keyerrors.New(keyerrors.KindNotFound, "Key not found")
	}
	if err != nil {
		return s.storageError("classify", err)
	}

	switch {
	case row.Status == models.StatusUsed:
		return keyerrors.New(keyerrors.KindGone, "Key has already been used")
	case row.Status == models.StatusExpired:
		return keyerrors.New(keyerrors.KindExpired, "Key not found")
	case row.Status == models.StatusUnused && !row.ExpiresAt.After(now):
		s.lazyExpire(ctx, keyID, holder)
		return keyerrors.New(keyerrors.KindExpired, "Key not found")
	default:
		return keyerrors.New(keyerrors.KindConflict, "key copy changed concurrently")
	}
}

// lazyExpire retires an unused copy whose window has passed. Best effort:
// the caller already reports Expired, the write only persists it.
func (s *Store) lazyExpire(ctx context.Context, keyID, holder string) {
	err := s.db.WithContext(ctx).
		Model(&models.QuantumKey{}).
		Where("key_id = ? AND holder = ? AND status = ?", keyID, holder, models.StatusUnused).
		Update("status", models.StatusExpired).Error
	if err != nil {
		s.logger.Warn("Lazy expiry write failed",
			zap.String("key_id", keyID),
			zap.String("holder", holder),
			zap.Error(err))
	}
}

// CreateSibling duplicates the sealed copy held by `from` for holder `to`.
// The insert ignores an existing (key_id, to) row, which makes re-sharing
// idempotent. Returns true when a new copy was written.
func (s *Store) CreateSibling(ctx context.Context, keyID, from, to string) (bool, error) {
	var source models.QuantumKey
	err := s.db.WithContext(ctx).
		Where("key_id = ? AND holder = ?", keyID, from).
		First(&source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, keyerrors.New(keyerrors.KindNotFound, "Key not found or access denied")
	}
	if err != nil {
		return false, s.storageError("share_lookup", err)
	}

	sibling := models.QuantumKey{
		KeyID:         source.KeyID,
		Holder:        to,
		KeyBytes:      source.KeyBytes,
		KeyLength:     source.KeyLength,
		Status:        models.StatusUnused,
		Protocol:      source.Protocol,
		ExpiresAt:     source.ExpiresAt,
		CreatedFor:    to,
		SharedBy:      from,
		HashStored:    source.HashStored,
		LedgerTxRef:   source.LedgerTxRef,
		LedgerNetwork: source.LedgerNetwork,
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sibling)
	if res.Error != nil {
		return false, s.storageError("share_insert", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByHolder returns a holder's copies, newest first, without material.
// Status filters and the reported status both account for copies whose
// window has passed but whose row has not been swept yet.
func (s *Store) ListByHolder(ctx context.Context, holder string, status models.KeyStatus, limit int, now time.Time) ([]HolderKey, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.QuantumKey{}).
		Select("key_id", "holder", "status", "key_length", "protocol", "created_at", "expires_at", "hash_stored").
		Where("holder = ?", holder).
		Order("created_at DESC").
		Limit(limit)

	switch status {
	case models.StatusUnused:
		tx = tx.Where("status = ? AND expires_at > ?", models.StatusUnused, now)
	case models.StatusUsed:
		tx = tx.Where("status = ?", models.StatusUsed)
	case models.StatusExpired:
		tx = tx.Where("status = ? OR (status = ? AND expires_at <= ?)", models.StatusExpired, models.StatusUnused, now)
	}

	var rows []models.QuantumKey
	if err := tx.Find(&rows).Error; err != nil {
		return nil, s.storageError("list", err)
	}

	keys := make([]HolderKey, 0, len(rows))
	for _, row := range rows {
		effective := row.Status
		if effective == models.StatusUnused && !row.ExpiresAt.After(now) {
			effective = models.StatusExpired
		}
		keys = append(keys, HolderKey{
			KeyID:      row.KeyID,
			Status:     effective,
			KeyLength:  row.KeyLength,
			Protocol:   row.Protocol,
			CreatedAt:  row.CreatedAt,
			ExpiresAt:  row.ExpiresAt,
			HashStored: row.HashStored,
		})
	}
	return keys, nil
}

// MarkAnchored records the ledger transaction on every copy of a key.
func (s *Store) MarkAnchored(ctx context.Context, keyID, txRef, network string) error {
	res := s.db.WithContext(ctx).
		Model(&models.QuantumKey{}).
		Where("key_id = ?", keyID).
		Updates(map[string]any{
			"hash_stored":    true,
			"ledger_tx_ref":  txRef,
			"ledger_network": network,
		})
	if res.Error != nil {
		return s.storageError("mark_anchored", res.Error)
	}
	if res.RowsAffected == 0 {
		return keyerrors.New(keyerrors.KindNotFound, "Key not found")
	}
	return nil
}

// SweepExpired retires every unused copy whose window has passed, in one
// statement. Returns the number of copies flipped.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.QuantumKey{}).
		Where("status = ? AND expires_at <= ?", models.StatusUnused, now).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return 0, s.storageError("sweep", res.Error)
	}
	return res.RowsAffected, nil
}

// StatsByHolder aggregates copy counts by effective status.
func (s *Store) StatsByHolder(ctx context.Context, holder string, now time.Time) (*Stats, error) {
	var stats Stats
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'unused' AND expires_at > ? THEN 1 ELSE 0 END), 0) AS unused,
			COALESCE(SUM(CASE WHEN status = 'used' THEN 1 ELSE 0 END), 0) AS used,
			COALESCE(SUM(CASE WHEN status = 'expired' OR (status = 'unused' AND expires_at <= ?) THEN 1 ELSE 0 END), 0) AS expired
		FROM quantum_keys
		WHERE holder = ?`, now, now, holder).
		Scan(&stats).Error
	if err != nil {
		return nil, s.storageError("stats", err)
	}
	return &stats, nil
}

func (s *Store) toCopy(row *models.QuantumKey) (*Copy, error) {
	plain, err := s.cipher.Open(row.KeyBytes)
	if err != nil {
		s.logger.Error("Failed to unseal stored key material",
			zap.String("key_id", row.KeyID),
			zap.String("holder", row.Holder),
			zap.Error(err))
		return nil, err
	}

	return &Copy{
		KeyID:         row.KeyID,
		Holder:        row.Holder,
		KeyBytes:      plain,
		KeyLength:     row.KeyLength,
		Status:        row.Status,
		Protocol:      row.Protocol,
		CreatedAt:     row.CreatedAt,
		ExpiresAt:     row.ExpiresAt,
		CreatedFor:    row.CreatedFor,
		SharedBy:      row.SharedBy,
		UsedBy:        row.UsedBy,
		UsedAt:        row.UsedAt,
		HashStored:    row.HashStored,
		LedgerTxRef:   row.LedgerTxRef,
		LedgerNetwork: row.LedgerNetwork,
	}, nil
}

func (s *Store) storageError(op string, err error) error {
	s.logger.Error("Key store operation failed", zap.String("op", op), zap.Error(err))
	return keyerrors.Wrap(keyerrors.KindDependency, "key store unavailable", err)
}
