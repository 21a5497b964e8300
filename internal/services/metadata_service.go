package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
	"github.com/talhajamadar1013-star/Qmail/pkg/metrics"
)

// MetadataService stores which key encrypted which email, so recipient
// clients can find the pad for a message. It works on the database handle
// directly; email metadata has no lifecycle beyond create and read.
type MetadataService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

// MetadataInput is the write shape. EmailID is assigned by the service.
type MetadataInput struct {
	SenderEmail    string
	RecipientEmail string
	KeyID          string
	SubjectHash    string
	IPFSCid        string
	TxHash         string
}

func NewMetadataService(database *gorm.DB, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *MetadataService {
	return &MetadataService{
		db:      database,
		logger:  logger.With(zap.String("service", "metadata_service")),
		metrics: metricsCollector,
	}
}

// Record stores one email-to-key mapping and returns its assigned id.
func (ms *MetadataService) Record(ctx context.Context, input MetadataInput) (*models.EmailMetadata, error) {
	record := models.EmailMetadata{
		EmailID:        uuid.New().String(),
		SenderEmail:    input.SenderEmail,
		RecipientEmail: input.RecipientEmail,
		KeyID:          input.KeyID,
		SubjectHash:    input.SubjectHash,
		IPFSCid:        input.IPFSCid,
		TxHash:         input.TxHash,
	}

	if err := ms.db.WithContext(ctx).Create(&record).Error; err != nil {
		ms.logger.Error("Failed to store email metadata", zap.Error(err))
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "metadata store unavailable", err)
	}

	ms.logger.Info("Stored email metadata",
		zap.String("email_id", record.EmailID),
		zap.String("key_id", record.KeyID))
	ms.metrics.IncrementCounter("metadata_service.recorded", nil)

	return &record, nil
}

// Get loads one mapping by email id.
func (ms *MetadataService) Get(ctx context.Context, emailID string) (*models.EmailMetadata, error) {
	var record models.EmailMetadata
	err := ms.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, keyerrors.New(keyerrors.KindNotFound, "Email metadata not found")
	}
	if err != nil {
		ms.logger.Error("Failed to load email metadata", zap.Error(err))
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "metadata store unavailable", err)
	}
	return &record, nil
}

// ListForRecipient returns a recipient's mappings, newest first, capped.
func (ms *MetadataService) ListForRecipient(ctx context.Context, recipient string, limit int) ([]models.EmailMetadata, error) {
	if recipient == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "recipient_email is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []models.EmailMetadata
	err := ms.db.WithContext(ctx).
		Where("recipient_email = ?", recipient).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		ms.logger.Error("Failed to list email metadata", zap.Error(err))
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "metadata store unavailable", err)
	}
	return records, nil
}
