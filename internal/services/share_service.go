package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/internal/keystore"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

// ShareService hands a key to a second holder by duplicating the sealed
// copy. The recipient's copy starts unused and lives its own lifecycle;
// nothing the sender does afterwards touches it.
type ShareService struct {
	store   *keystore.Store
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

// ShareResult reports the recipient copy. Copied is false when the
// recipient already held one, which callers treat as success.
type ShareResult struct {
	KeyID  string
	Holder string
	Status models.KeyStatus
	Copied bool
}

func NewShareService(store *keystore.Store, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *ShareService {
	return &ShareService{
		store:   store,
		logger:  logger.With(zap.String("service", "share_service")),
		metrics: metricsCollector,
	}
}

// Share duplicates the copy held by `from` for holder `to`. Re-sharing the
// same key to the same recipient is idempotent.
func (ss *ShareService) Share(ctx context.Context, keyID, from, to string) (*ShareResult, error) {
	start := time.Now()
	defer func() {
		ss.metrics.ObserveLatency("share_service.share", time.Since(start))
	}()

	if keyID == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "key_id is required")
	}
	if from == "" || to == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "from_holder and to_holder are required")
	}
	if from == to {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "cannot share a key with its current holder")
	}

	created, err := ss.store.CreateSibling(ctx, keyID, from, to)
	if err != nil {
		return nil, err
	}

	if created {
		ss.logger.Info("Shared key",
			zap.String("key_id", keyID),
			zap.String("from", from),
			zap.String("to", to))
		ss.metrics.IncrementCounter("share_service.shared", nil)
	}

	return &ShareResult{
		KeyID:  keyID,
		Holder: to,
		Status: models.StatusUnused,
		Copied: created,
	}, nil
}
