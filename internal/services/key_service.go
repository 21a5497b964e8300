package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/anchor"
	"github.com/talhajamadar1013-star/Qmail/internal/config"
	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/internal/integrity"
	"github.com/talhajamadar1013-star/Qmail/internal/keystore"
	"github.com/talhajamadar1013-star/Qmail/internal/quantum"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	anchorTimeout    = 10 * time.Second
)

// KeyService owns the key lifecycle: generation, delivery, consumption,
// expiry and the ledger anchor flow. Lifecycle state lives entirely in the
// keystore; this layer adds validation, metadata and observability.
type KeyService struct {
	store         *keystore.Store
	generator     *quantum.Generator
	anchors       *anchor.Submitter // nil disables anchoring
	cfg           config.KeysConfig
	anchorNetwork string
	logger        *zap.Logger
	metrics       *metrics.MetricsCollector
	stopChan      chan struct{}
	closeOnce     sync.Once
}

// GeneratedKey is the creation receipt. Material is never part of it;
// holders fetch the bytes separately.
type GeneratedKey struct {
	KeyID     string
	Status    models.KeyStatus
	KeyLength int
	Protocol  string
	ExpiresAt time.Time
}

// FetchedKey carries the unsealed material to exactly one holder.
type FetchedKey struct {
	KeyID    string
	KeyBytes []byte
}

// ConsumedKey confirms a one-way transition to used.
type ConsumedKey struct {
	KeyID  string
	Status models.KeyStatus
	UsedAt time.Time
}

func NewKeyService(store *keystore.Store, generator *quantum.Generator, anchors *anchor.Submitter, cfg config.KeysConfig, anchorNetwork string, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *KeyService {
	ks := &KeyService{
		store:         store,
		generator:     generator,
		anchors:       anchors,
		cfg:           cfg,
		anchorNetwork: anchorNetwork,
		logger:        logger.With(zap.String("service", "key_service")),
		metrics:       metricsCollector,
		stopChan:      make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go ks.startBackgroundSweep()
	}

	return ks
}

func (ks *KeyService) startBackgroundSweep() {
	ticker := time.NewTicker(ks.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ks.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := ks.SweepExpired(ctx); err != nil {
				ks.logger.Warn("Background sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops the background sweep. Safe to call more than once.
func (ks *KeyService) Close() {
	ks.closeOnce.Do(func() { close(ks.stopChan) })
}

// Generate creates key material and the requester's copy of it. A zero
// length or TTL falls back to the configured default.
func (ks *KeyService) Generate(ctx context.Context, requester string, lengthBits int, ttl time.Duration) (*GeneratedKey, error) {
	start := time.Now()
	defer func() {
		ks.metrics.ObserveLatency("key_service.generate", time.Since(start))
	}()

	if requester == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "user_id is required")
	}
	if lengthBits == 0 {
		lengthBits = ks.cfg.DefaultLengthBits
	}
	if lengthBits < 0 || lengthBits%8 != 0 {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "key_length must be a positive multiple of 8 bits")
	}
	if lengthBits < ks.cfg.MinLengthBits || lengthBits > ks.cfg.MaxLengthBits {
		return nil, keyerrors.Newf(keyerrors.KindInvalidArgument, "key_length must be between %d and %d bits", ks.cfg.MinLengthBits, ks.cfg.MaxLengthBits)
	}
	if ttl <= 0 {
		ttl = ks.cfg.DefaultTTL
	}

	keyBytes, meta, err := ks.generator.Generate(lengthBits)
	if err != nil {
		return nil, err
	}

	keyID := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	if err := ks.store.Insert(ctx, keystore.NewKey{
		KeyID:     keyID,
		Holder:    requester,
		KeyBytes:  keyBytes,
		KeyLength: lengthBits,
		Protocol:  meta.Protocol,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	ks.logger.Info("Generated key",
		zap.String("key_id", keyID),
		zap.String("holder", requester),
		zap.Int("key_length", lengthBits),
		zap.String("protocol", meta.Protocol),
		zap.Float64("error_rate", meta.ErrorRate),
		zap.Float64("entropy_quality", meta.EntropyQuality),
		zap.Bool("verification_passed", meta.VerificationPassed),
		zap.Time("expires_at", expiresAt))
	ks.metrics.IncrementCounter("key_service.generated", map[string]string{"protocol": meta.Protocol})
	ks.metrics.ObserveSize("key_service.generated_bits", float64(lengthBits))

	if ks.anchors != nil {
		go ks.anchorFingerprint(keyID, keyBytes, now)
	}

	return &GeneratedKey{
		KeyID:     keyID,
		Status:    models.StatusUnused,
		KeyLength: lengthBits,
		Protocol:  meta.Protocol,
		ExpiresAt: expiresAt,
	}, nil
}

// Fetch returns the holder's copy of the material. Reading never changes
// the status: a copy stays unused until it is explicitly consumed.
func (ks *KeyService) Fetch(ctx context.Context, keyID, holder string) (*FetchedKey, error) {
	if holder == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "X-User-ID header is required")
	}

	kc, err := ks.store.GetCopy(ctx, keyID, holder, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if kc.Status == models.StatusUsed {
		return nil, keyerrors.New(keyerrors.KindGone, "Key has already been used")
	}

	ks.metrics.IncrementCounter("key_service.fetched", nil)
	return &FetchedKey{KeyID: kc.KeyID, KeyBytes: kc.KeyBytes}, nil
}

// Consume moves the holder's copy to used, exactly once. Concurrent callers
// race on a single conditional update in the store; losers see Gone.
func (ks *KeyService) Consume(ctx context.Context, keyID, holder string) (*ConsumedKey, error) {
	if holder == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "X-User-ID header is required")
	}

	now := time.Now().UTC()
	err := ks.store.CompareAndSetStatus(ctx, keyID, holder, models.StatusUnused, models.StatusUsed, holder, now)
	if err != nil {
		return nil, err
	}

	ks.logger.Info("Key consumed",
		zap.String("key_id", keyID),
		zap.String("holder", holder))
	ks.metrics.IncrementCounter("key_service.consumed", nil)

	return &ConsumedKey{KeyID: keyID, Status: models.StatusUsed, UsedAt: now}, nil
}

// Fingerprint returns the SHA-256 digest of the key material. Any copy
// serves, since sharing duplicates the bytes verbatim.
func (ks *KeyService) Fingerprint(ctx context.Context, keyID string) (string, error) {
	kc, err := ks.store.GetAnyCopy(ctx, keyID)
	if err != nil {
		return "", err
	}
	return integrity.Fingerprint(kc.KeyBytes)
}

// ListHolderKeys returns a holder's copies without material.
func (ks *KeyService) ListHolderKeys(ctx context.Context, holder, status string, limit int) ([]keystore.HolderKey, error) {
	if holder == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "user_id is required")
	}

	filter := models.KeyStatus(status)
	switch filter {
	case "", models.StatusUnused, models.StatusUsed, models.StatusExpired:
	default:
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "status must be one of unused, used, expired")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		return nil, keyerrors.Newf(keyerrors.KindInvalidArgument, "limit must not exceed %d", maxListLimit)
	}

	return ks.store.ListByHolder(ctx, holder, filter, limit, time.Now().UTC())
}

// HolderStats aggregates a holder's copies by effective status.
func (ks *KeyService) HolderStats(ctx context.Context, holder string) (*keystore.Stats, error) {
	if holder == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "user_id is required")
	}
	return ks.store.StatsByHolder(ctx, holder, time.Now().UTC())
}

// SweepExpired retires every copy whose window has passed.
func (ks *KeyService) SweepExpired(ctx context.Context) (int64, error) {
	swept, err := ks.store.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		ks.logger.Info("Swept expired keys", zap.Int64("expired_count", swept))
		ks.metrics.IncrementCounter("key_service.swept", nil)
	}
	return swept, nil
}

// RecordAnchor stores an externally obtained ledger reference on every copy
// of the key. Used by the workflow where a collaborator anchors the
// fingerprint itself and reports back.
func (ks *KeyService) RecordAnchor(ctx context.Context, keyID, txHash, network string) (string, error) {
	if txHash == "" {
		return "", keyerrors.New(keyerrors.KindInvalidArgument, "tx_hash is required")
	}
	if network == "" {
		network = ks.anchorNetwork
	}

	if err := ks.store.MarkAnchored(ctx, keyID, txHash, network); err != nil {
		return "", err
	}

	ks.logger.Info("Recorded external anchor",
		zap.String("key_id", keyID),
		zap.String("tx_hash", txHash),
		zap.String("network", network))
	ks.metrics.IncrementCounter("key_service.anchor_recorded", nil)
	return network, nil
}

// anchorFingerprint runs after generation, off the request path. Anchor
// failures are logged and counted but never fail the key.
func (ks *KeyService) anchorFingerprint(keyID string, keyBytes []byte, generatedAt time.Time) {
	fingerprint, err := integrity.Fingerprint(keyBytes)
	if err != nil {
		ks.logger.Warn("Skipping anchor for unfingerprintable key",
			zap.String("key_id", keyID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), anchorTimeout)
	defer cancel()

	txHash, err := ks.anchors.Submit(ctx, keyID, fingerprint, generatedAt)
	if err != nil {
		ks.logger.Warn("Anchor submission failed",
			zap.String("key_id", keyID), zap.Error(err))
		ks.metrics.IncrementCounter("key_service.anchor_failed", nil)
		return
	}

	if err := ks.store.MarkAnchored(ctx, keyID, txHash, ks.anchors.Network()); err != nil {
		ks.logger.Warn("Failed to record anchor reference",
			zap.String("key_id", keyID),
			zap.String("tx_hash", txHash),
			zap.Error(err))
		return
	}
	ks.metrics.IncrementCounter("key_service.anchor_submitted", nil)
}
