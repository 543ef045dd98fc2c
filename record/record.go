package record

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the queue-visible slice of a persisted test record.
type Record struct {
	CorrelationID string          `json:"correlation_id" msgpack:"correlation_id"`
	Status        string          `json:"status" msgpack:"status"`
	Error         string          `json:"error,omitempty" msgpack:"error,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty" msgpack:"cancel_reason,omitempty"`
	Results       json.RawMessage `json:"results,omitempty" msgpack:"results,omitempty"`
	Extra         map[string]any  `json:"extra,omitempty" msgpack:"extra,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at" msgpack:"updated_at"`
}

// Store persists queue-side updates to test records.
type Store interface {
	// UpdateStatus records a non-terminal status change with optional
	// extra fields (queue position, wait estimate, progress).
	UpdateStatus(ctx context.Context, correlationID, status string, extra map[string]any) error

	// Complete marks the record completed with its result payload.
	Complete(ctx context.Context, correlationID string, results json.RawMessage) error

	// Fail marks the record terminally failed.
	Fail(ctx context.Context, correlationID, errorMessage string) error

	// Cancel marks the record cancelled.
	Cancel(ctx context.Context, correlationID, reason string) error

	// Get retrieves the record, or runq.ErrRecordNotFound.
	Get(ctx context.Context, correlationID string) (*Record, error)
}
