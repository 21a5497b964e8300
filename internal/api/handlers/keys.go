package handlers

import (
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/api/middleware"
	"github.com/talhajamadar1013-star/Qmail/internal/services"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

type KeyHandler struct {
	keyService *services.KeyService
	logger     *zap.Logger
}

func NewKeyHandler(keyService *services.KeyService, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{
		keyService: keyService,
		logger:     logger.With(zap.String("handler", "keys")),
	}
}

type generateKeyRequest struct {
	KeyLength  int    `json:"key_length"`
	UserID     string `json:"user_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type generateKeyResponse struct {
	KeyID  string `json:"key_id"`
	Status string `json:"status"`
}

type fetchKeyResponse struct {
	KeyID    string `json:"key_id"`
	KeyBytes string `json:"key_bytes"`
}

type consumeKeyResponse struct {
	KeyID  string `json:"key_id"`
	Status string `json:"status"`
}

type keyHashResponse struct {
	KeyID string `json:"key_id"`
	Hash  string `json:"hash"`
}

type recordAnchorRequest struct {
	TxHash     string `json:"tx_hash"`
	Blockchain string `json:"blockchain"`
}

type recordAnchorResponse struct {
	Message    string `json:"message"`
	KeyID      string `json:"key_id"`
	TxHash     string `json:"tx_hash"`
	Blockchain string `json:"blockchain"`
	Timestamp  string `json:"timestamp"`
}

type listedKey struct {
	KeyID      string    `json:"key_id"`
	Status     string    `json:"status"`
	KeyLength  int       `json:"key_length"`
	Protocol   string    `json:"protocol"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	HashStored bool      `json:"hash_stored"`
}

type listKeysResponse struct {
	UserID    string      `json:"user_id"`
	TotalKeys int         `json:"total_keys"`
	Keys      []listedKey `json:"keys"`
}

type keyStatsResponse struct {
	UserID      string `json:"user_id"`
	TotalKeys   int64  `json:"total_keys"`
	ActiveKeys  int64  `json:"active_keys"`
	UsedKeys    int64  `json:"used_keys"`
	ExpiredKeys int64  `json:"expired_keys"`
}

// GenerateKey handles POST /keys.
func (h *KeyHandler) GenerateKey(c *gin.Context) {
	var req generateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, keyerrors.New(keyerrors.KindInvalidArgument, "request body must be valid JSON"))
		return
	}

	generated, err := h.keyService.Generate(c.Request.Context(), req.UserID, req.KeyLength, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, generateKeyResponse{
		KeyID:  generated.KeyID,
		Status: string(generated.Status),
	})
}

// GetKey handles GET /keys/:key_id. The holder comes from the auth
// middleware; the material goes out hex-encoded.
func (h *KeyHandler) GetKey(c *gin.Context) {
	holder := c.GetString(middleware.ContextHolderKey)

	fetched, err := h.keyService.Fetch(c.Request.Context(), c.Param("key_id"), holder)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, fetchKeyResponse{
		KeyID:    fetched.KeyID,
		KeyBytes: hex.EncodeToString(fetched.KeyBytes),
	})
}

// UseKey handles PATCH /keys/:key_id/use.
func (h *KeyHandler) UseKey(c *gin.Context) {
	holder := c.GetString(middleware.ContextHolderKey)

	consumed, err := h.keyService.Consume(c.Request.Context(), c.Param("key_id"), holder)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, consumeKeyResponse{
		KeyID:  consumed.KeyID,
		Status: string(consumed.Status),
	})
}

// GetKeyHash handles GET /keys/:key_id/hash.
func (h *KeyHandler) GetKeyHash(c *gin.Context) {
	keyID := c.Param("key_id")

	hash, err := h.keyService.Fingerprint(c.Request.Context(), keyID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, keyHashResponse{KeyID: keyID, Hash: hash})
}

// RecordAnchor handles POST /keys/:key_id/blockchain, where a collaborator
// reports the ledger reference it obtained for this key's fingerprint.
func (h *KeyHandler) RecordAnchor(c *gin.Context) {
	keyID := c.Param("key_id")

	var req recordAnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, keyerrors.New(keyerrors.KindInvalidArgument, "request body must be valid JSON"))
		return
	}

	network, err := h.keyService.RecordAnchor(c.Request.Context(), keyID, req.TxHash, req.Blockchain)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, recordAnchorResponse{
		Message:    "Blockchain hash stored",
		KeyID:      keyID,
		TxHash:     req.TxHash,
		Blockchain: network,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// ListUserKeys handles GET /api/v1/user/:user_id/keys.
func (h *KeyHandler) ListUserKeys(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, keyerrors.New(keyerrors.KindInvalidArgument, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	keys, err := h.keyService.ListHolderKeys(c.Request.Context(), userID, c.Query("status"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	listed := make([]listedKey, len(keys))
	for i, key := range keys {
		listed[i] = listedKey{
			KeyID:      key.KeyID,
			Status:     string(key.Status),
			KeyLength:  key.KeyLength,
			Protocol:   key.Protocol,
			CreatedAt:  key.CreatedAt,
			ExpiresAt:  key.ExpiresAt,
			HashStored: key.HashStored,
		}
	}

	c.JSON(http.StatusOK, listKeysResponse{
		UserID:    userID,
		TotalKeys: len(listed),
		Keys:      listed,
	})
}

// UserKeyStats handles GET /api/v1/user/:user_id/keys/stats.
func (h *KeyHandler) UserKeyStats(c *gin.Context) {
	userID := c.Param("user_id")

	stats, err := h.keyService.HolderStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, keyStatsResponse{
		UserID:      userID,
		TotalKeys:   stats.Total,
		ActiveKeys:  stats.Unused,
		UsedKeys:    stats.Used,
		ExpiredKeys: stats.Expired,
	})
}
