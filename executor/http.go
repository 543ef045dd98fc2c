package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/XiangYd616/runq/id"
)

// HTTPClient calls the executor's HTTP API:
//
//	POST {base}/executions/{correlationID}/start
//	GET  {base}/executions/{correlationID}/status
type HTTPClient struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithHTTPLogger sets the structured logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a client for the executor API at base.
func NewHTTPClient(base string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ Executor = (*HTTPClient)(nil)

type startRequest struct {
	JobID  string          `json:"job_id"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Start implements Executor.
func (h *HTTPClient) Start(ctx context.Context, jobID id.RunID, correlationID string, config json.RawMessage) error {
	body, err := json.Marshal(startRequest{JobID: jobID.String(), Config: config})
	if err != nil {
		return fmt.Errorf("executor: marshal start request: %w", err)
	}

	u := h.base + "/executions/" + url.PathEscape(correlationID) + "/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("executor: build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("executor: start %s: %w", correlationID, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("executor: start %s: status %d: %s", correlationID, resp.StatusCode, detail)
	}
	return nil
}

// Poll implements Executor.
func (h *HTTPClient) Poll(ctx context.Context, correlationID string) (Report, error) {
	u := h.base + "/executions/" + url.PathEscape(correlationID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Report{}, fmt.Errorf("executor: build poll request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("executor: poll %s: %w", correlationID, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Report{}, fmt.Errorf("executor: poll %s: status %d: %s", correlationID, resp.StatusCode, detail)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Report{}, fmt.Errorf("executor: decode poll response: %w", err)
	}
	return report, nil
}
