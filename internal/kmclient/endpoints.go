package kmclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GeneratedKey is the response to a key generation request.
type GeneratedKey struct {
	KeyID  string `json:"key_id"`
	Status string `json:"status"`
}

// ConsumedKey is the response to a consume request.
type ConsumedKey struct {
	KeyID  string `json:"key_id"`
	Status string `json:"status"`
}

// SharedKey is the response to an internal share request.
type SharedKey struct {
	KeyID  string `json:"key_id"`
	Holder string `json:"holder"`
	Status string `json:"status"`
	Copied bool   `json:"copied"`
}

// AnchorRecord is the response to recording a ledger transaction.
type AnchorRecord struct {
	Message    string `json:"message"`
	KeyID      string `json:"key_id"`
	TxHash     string `json:"tx_hash"`
	Blockchain string `json:"blockchain"`
	Timestamp  string `json:"timestamp"`
}

// ListedKey is one entry of a holder's key inventory. It never carries key
// material.
type ListedKey struct {
	KeyID      string    `json:"key_id"`
	Status     string    `json:"status"`
	KeyLength  int       `json:"key_length"`
	Protocol   string    `json:"protocol"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	HashStored bool      `json:"hash_stored"`
}

// KeyList is a holder's key inventory.
type KeyList struct {
	UserID    string      `json:"user_id"`
	TotalKeys int         `json:"total_keys"`
	Keys      []ListedKey `json:"keys"`
}

// KeyStats summarizes a holder's keys by status.
type KeyStats struct {
	UserID      string `json:"user_id"`
	TotalKeys   int64  `json:"total_keys"`
	ActiveKeys  int64  `json:"active_keys"`
	UsedKeys    int64  `json:"used_keys"`
	ExpiredKeys int64  `json:"expired_keys"`
}

// SweepResult is the response to an expiry sweep.
type SweepResult struct {
	ExpiredCount int64  `json:"expired_count"`
	Timestamp    string `json:"timestamp"`
}

// HealthStatus is the service health report.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type generateRequest struct {
	KeyLength  int    `json:"key_length,omitempty"`
	UserID     string `json:"user_id"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type shareRequest struct {
	FromHolder string `json:"from_holder"`
	ToHolder   string `json:"to_holder"`
}

type anchorRequest struct {
	TxHash     string `json:"tx_hash"`
	Blockchain string `json:"blockchain,omitempty"`
}

// GenerateKey requests a fresh key for userID. Zero bits or ttl let the
// server apply its defaults.
func (c *Client) GenerateKey(ctx context.Context, userID string, bits int, ttl time.Duration) (*GeneratedKey, error) {
	req := generateRequest{
		KeyLength:  bits,
		UserID:     userID,
		TTLSeconds: int(ttl.Seconds()),
	}
	var result GeneratedKey
	if err := c.do(ctx, http.MethodPost, "/keys", "", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchKey retrieves holder's copy of the key material without consuming it.
func (c *Client) FetchKey(ctx context.Context, keyID, holder string) ([]byte, error) {
	path := fmt.Sprintf("/keys/%s", url.PathEscape(keyID))
	var result struct {
		KeyID    string `json:"key_id"`
		KeyBytes string `json:"key_bytes"`
	}
	if err := c.do(ctx, http.MethodGet, path, holder, nil, &result); err != nil {
		return nil, err
	}

	material, err := hex.DecodeString(result.KeyBytes)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return material, nil
}

// ConsumeKey marks holder's copy used. It succeeds at most once per copy.
func (c *Client) ConsumeKey(ctx context.Context, keyID, holder string) (*ConsumedKey, error) {
	path := fmt.Sprintf("/keys/%s/use", url.PathEscape(keyID))
	var result ConsumedKey
	if err := c.do(ctx, http.MethodPatch, path, holder, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// KeyHash returns the key's fingerprint.
func (c *Client) KeyHash(ctx context.Context, keyID string) (string, error) {
	path := fmt.Sprintf("/keys/%s/hash", url.PathEscape(keyID))
	var result struct {
		KeyID string `json:"key_id"`
		Hash  string `json:"hash"`
	}
	if err := c.do(ctx, http.MethodGet, path, "", nil, &result); err != nil {
		return "", err
	}
	return result.Hash, nil
}

// RecordAnchor reports an externally obtained ledger transaction for the
// key's fingerprint. An empty network lets the server fill in its default.
func (c *Client) RecordAnchor(ctx context.Context, keyID, txHash, network string) (*AnchorRecord, error) {
	path := fmt.Sprintf("/keys/%s/blockchain", url.PathEscape(keyID))
	var result AnchorRecord
	if err := c.do(ctx, http.MethodPost, path, "", anchorRequest{TxHash: txHash, Blockchain: network}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListKeys returns userID's key inventory, optionally filtered by status.
func (c *Client) ListKeys(ctx context.Context, userID, status string, limit int) (*KeyList, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/api/v1/user/%s/keys", url.PathEscape(userID))
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result KeyList
	if err := c.do(ctx, http.MethodGet, path, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats returns userID's key counts by status.
func (c *Client) Stats(ctx context.Context, userID string) (*KeyStats, error) {
	path := fmt.Sprintf("/api/v1/user/%s/keys/stats", url.PathEscape(userID))
	var result KeyStats
	if err := c.do(ctx, http.MethodGet, path, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ShareKey gives toHolder an independent copy of fromHolder's key. The
// client's token must be the server's service token.
func (c *Client) ShareKey(ctx context.Context, keyID, fromHolder, toHolder string) (*SharedKey, error) {
	path := fmt.Sprintf("/internal/keys/%s/share", url.PathEscape(keyID))
	var result SharedKey
	if err := c.do(ctx, http.MethodPost, path, "", shareRequest{FromHolder: fromHolder, ToHolder: toHolder}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sweep asks the server to mark all overdue copies expired. The client's
// token must be the server's service token.
func (c *Client) Sweep(ctx context.Context) (*SweepResult, error) {
	var result SweepResult
	if err := c.do(ctx, http.MethodPost, "/internal/keys/sweep", "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks the service.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var result HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
