package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/services"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// InternalHandler serves the service-to-service surface: sharing keys on
// behalf of the mail workflow and triggering sweeps on demand.
type InternalHandler struct {
	keyService   *services.KeyService
	shareService *services.ShareService
	logger       *zap.Logger
}

func NewInternalHandler(keyService *services.KeyService, shareService *services.ShareService, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{
		keyService:   keyService,
		shareService: shareService,
		logger:       logger.With(zap.String("handler", "internal")),
	}
}

type shareKeyRequest struct {
	FromHolder string `json:"from_holder"`
	ToHolder   string `json:"to_holder"`
}

type shareKeyResponse struct {
	KeyID  string `json:"key_id"`
	Holder string `json:"holder"`
	Status string `json:"status"`
	Copied bool   `json:"copied"`
}

type sweepResponse struct {
	ExpiredCount int64  `json:"expired_count"`
	Timestamp    string `json:"timestamp"`
}

// ShareKey handles POST /internal/keys/:key_id/share.
func (h *InternalHandler) ShareKey(c *gin.Context) {
	var req shareKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, keyerrors.New(keyerrors.KindInvalidArgument, "request body must be valid JSON"))
		return
	}

	result, err := h.shareService.Share(c.Request.Context(), c.Param("key_id"), req.FromHolder, req.ToHolder)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shareKeyResponse{
		KeyID:  result.KeyID,
		Holder: result.Holder,
		Status: string(result.Status),
		Copied: result.Copied,
	})
}

// SweepKeys handles POST /internal/keys/sweep.
func (h *InternalHandler) SweepKeys(c *gin.Context) {
	swept, err := h.keyService.SweepExpired(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sweepResponse{
		ExpiredCount: swept,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
