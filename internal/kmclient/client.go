// Package kmclient is the Go client for the key manager's HTTP API, used by
// qukeyctl and by service peers that fetch or consume pad material. Responses
// are typed and failures carry the server's taxonomy kind, so callers branch
// on kinds instead of parsing message text.
package kmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// Client talks to one key manager instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request. Internal endpoints
// (share, sweep) require the service token; key fetches accept any token the
// server was configured with.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a client for the key manager at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response from the key manager.
type APIError struct {
	StatusCode int
	Kind       keyerrors.Kind
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("key manager: %s (%s, http %d)", e.Message, e.Kind, e.StatusCode)
}

// IsKind reports whether err is an APIError carrying the given kind.
func IsKind(err error, kind keyerrors.Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// do sends one request. Consume is not idempotent, so the client never
// retries on its own; callers that want retries must confirm key state first.
func (c *Client) do(ctx context.Context, method, path, holder string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if holder != "" {
		req.Header.Set("X-User-ID", holder)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Kind:       keyerrors.Kind(body.Kind),
			Message:    body.Error,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       keyerrors.KindDependency,
		Message:    strings.TrimSpace(string(raw)),
	}
}
