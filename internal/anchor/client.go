package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// Submitter posts signed fingerprint records to the ledger gateway.
type Submitter struct {
	base    string
	network string
	signer  *Signer
	client  *http.Client
	logger  *zap.Logger
}

func NewSubmitter(endpoint, network string, signer *Signer, logger *zap.Logger) *Submitter {
	return &Submitter{
		base:    strings.TrimRight(endpoint, "/"),
		network: network,
		signer:  signer,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With(zap.String("service", "anchor")),
	}
}

// Network returns the configured ledger network label.
func (s *Submitter) Network() string { return s.network }

type submitRequest struct {
	KeyID       string `json:"key_id"`
	Fingerprint string `json:"fingerprint"`
	GeneratedAt string `json:"generated_at"`
	Network     string `json:"network"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key"`
}

type submitResponse struct {
	TxHash string `json:"tx_hash"`
}

// Submit signs the record and posts it, returning the gateway's transaction
// hash. Failures carry the dependency kind so callers can treat the ledger
// as a soft dependency.
func (s *Submitter) Submit(ctx context.Context, keyID, fingerprint string, generatedAt time.Time) (string, error) {
	payload := Payload{
		KeyID:       keyID,
		Fingerprint: fingerprint,
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
	}
	signature, publicKey, err := s.signer.Sign(payload)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(submitRequest{
		KeyID:       payload.KeyID,
		Fingerprint: payload.Fingerprint,
		GeneratedAt: payload.GeneratedAt,
		Network:     s.network,
		Signature:   signature,
		PublicKey:   publicKey,
	})
	if err != nil {
		return "", keyerrors.Wrap(keyerrors.KindDependency, "failed to encode anchor record", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/anchors", bytes.NewReader(body))
	if err != nil {
		return "", keyerrors.Wrap(keyerrors.KindDependency, "failed to build anchor request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", keyerrors.Wrap(keyerrors.KindDependency, "ledger gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", keyerrors.Newf(keyerrors.KindDependency, "ledger gateway returned %s", resp.Status)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", keyerrors.Wrap(keyerrors.KindDependency, "malformed ledger gateway response", err)
	}
	if out.TxHash == "" {
		return "", keyerrors.New(keyerrors.KindDependency, "ledger gateway returned no transaction hash")
	}

	s.logger.Info("Anchored key fingerprint",
		zap.String("key_id", keyID),
		zap.String("tx_hash", out.TxHash),
		zap.String("network", s.network))
	return out.TxHash, nil
}
