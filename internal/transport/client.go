// Package transport ships queued batches to the remote intake endpoint over
// HTTPS and classifies the response into success or a typed failure.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/trapd-io/trapd-agent/internal/queue"
)

const (
	eventsPath     = "/api/v1/events/batch"
	requestTimeout = 15 * time.Second
	maxBodyExcerpt = 2048
)

// TransportError represents a failed attempt to ship a batch: a non-2xx
// response, a timeout, a DNS failure, a TLS failure or a connection reset.
type TransportError struct {
	StatusCode  int // 0 when the request never produced a response
	BodyExcerpt string
	Err         error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: request failed: %v", e.Err)
	}
	return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.BodyExcerpt)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts batches of queue items to the configured intake endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	log        *zap.Logger

	loggedFirstBatch bool
}

// New constructs a Client. userAgent should be "TRAPD-Agent/<version>".
func New(baseURL, apiKey, userAgent string, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  userAgent,
		log:        log,
	}
}

// batchElement is one item of the wire payload sent to the intake endpoint.
// Payload is re-embedded as JSON structure, never as a string, per the
// intake contract.
type batchElement struct {
	ID         int64           `json:"id"`
	CreatedUTC string          `json:"created_utc"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

// SendBatch ships items to the remote intake. Returns nil on a 2xx response,
// otherwise a *TransportError describing the failure.
func (c *Client) SendBatch(ctx context.Context, items []queue.Item) error {
	elements := make([]batchElement, len(items))
	for i, it := range items {
		elements[i] = batchElement{
			ID:         it.ID,
			CreatedUTC: it.CreatedUTC,
			Type:       it.Type,
			Payload:    json.RawMessage(it.PayloadJSON),
		}
	}

	body, err := json.Marshal(elements)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("marshal batch: %w", err)}
	}

	if c.log != nil {
		if !c.loggedFirstBatch {
			c.log.Info("sending first batch", zap.Int("items", len(items)), zap.ByteString("payload", body))
			c.loggedFirstBatch = true
		} else {
			c.log.Debug("sending batch", zap.Int("items", len(items)))
		}
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("invalid base url: %w", err)}
	}
	base.Path = path.Join(base.Path, eventsPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if c.log != nil {
		c.log.Info("intake response", zap.Int("status", resp.StatusCode), zap.ByteString("body_excerpt", respBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{StatusCode: resp.StatusCode, BodyExcerpt: string(respBytes)}
	}

	return nil
}
