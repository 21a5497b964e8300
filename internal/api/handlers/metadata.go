package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/internal/services"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

type MetadataHandler struct {
	metadataService *services.MetadataService
	logger          *zap.Logger
}

func NewMetadataHandler(metadataService *services.MetadataService, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{
		metadataService: metadataService,
		logger:          logger.With(zap.String("handler", "metadata")),
	}
}

type recordMetadataRequest struct {
	SenderEmail    string `json:"sender_email"`
	RecipientEmail string `json:"recipient_email"`
	KeyID          string `json:"key_id"`
	SubjectHash    string `json:"subject_hash"`
	IPFSCid        string `json:"ipfs_cid"`
	TxHash         string `json:"tx_hash"`
}

type recordMetadataResponse struct {
	EmailID   string `json:"email_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type metadataRecord struct {
	EmailID        string    `json:"email_id"`
	SenderEmail    string    `json:"sender_email"`
	RecipientEmail string    `json:"recipient_email"`
	KeyID          string    `json:"key_id"`
	SubjectHash    string    `json:"subject_hash"`
	IPFSCid        string    `json:"ipfs_cid"`
	TxHash         string    `json:"tx_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

type listMetadataResponse struct {
	UserID string           `json:"user_id"`
	Total  int              `json:"total"`
	Emails []metadataRecord `json:"emails"`
}

func toMetadataRecord(m *models.EmailMetadata) metadataRecord {
	return metadataRecord{
		EmailID:        m.EmailID,
		SenderEmail:    m.SenderEmail,
		RecipientEmail: m.RecipientEmail,
		KeyID:          m.KeyID,
		SubjectHash:    m.SubjectHash,
		IPFSCid:        m.IPFSCid,
		TxHash:         m.TxHash,
		CreatedAt:      m.CreatedAt,
	}
}

// RecordMetadata handles POST /api/v1/email/metadata.
func (h *MetadataHandler) RecordMetadata(c *gin.Context) {
	var req recordMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, keyerrors.New(keyerrors.KindInvalidArgument, "request body must be valid JSON"))
		return
	}

	required := []struct {
		field string
		value string
	}{
		{"sender_email", req.SenderEmail},
		{"recipient_email", req.RecipientEmail},
		{"key_id", req.KeyID},
	}
	for _, r := range required {
		if r.value == "" {
			respondError(c, keyerrors.Newf(keyerrors.KindInvalidArgument, "%s is required", r.field))
			return
		}
	}

	record, err := h.metadataService.Record(c.Request.Context(), services.MetadataInput{
		SenderEmail:    req.SenderEmail,
		RecipientEmail: req.RecipientEmail,
		KeyID:          req.KeyID,
		SubjectHash:    req.SubjectHash,
		IPFSCid:        req.IPFSCid,
		TxHash:         req.TxHash,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, recordMetadataResponse{
		EmailID:   record.EmailID,
		Message:   "Email metadata stored successfully",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetMetadata handles GET /api/v1/email/metadata/:email_id.
func (h *MetadataHandler) GetMetadata(c *gin.Context) {
	record, err := h.metadataService.Get(c.Request.Context(), c.Param("email_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMetadataRecord(record))
}

// ListUserEmails handles GET /api/v1/user/:user_id/emails, the recipient's
// inbox view of stored mappings.
func (h *MetadataHandler) ListUserEmails(c *gin.Context) {
	userID := c.Param("user_id")

	records, err := h.metadataService.ListForRecipient(c.Request.Context(), userID, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	emails := make([]metadataRecord, len(records))
	for i := range records {
		emails[i] = toMetadataRecord(&records[i])
	}

	c.JSON(http.StatusOK, listMetadataResponse{
		UserID: userID,
		Total:  len(emails),
		Emails: emails,
	})
}
