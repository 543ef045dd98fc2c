// Package executor defines the contract with the external test
// executor: a request/poll API that actually runs a test. The engine
// treats it as a black box — it starts an execution, then polls status
// until a terminal report or its own execution timeout.
package executor

import (
	"context"
	"encoding/json"

	"github.com/XiangYd616/runq/id"
)

// Status is the executor-reported execution status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s ends the poll loop.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Report is one poll result.
type Report struct {
	Status Status `json:"status"`

	// Progress is the completion percentage, if the executor reports one.
	Progress *int `json:"progress,omitempty"`

	// Results is the opaque result payload on completion.
	Results json.RawMessage `json:"results,omitempty"`

	// Error is the failure detail on a failed status.
	Error string `json:"error,omitempty"`
}

// Executor starts test executions and reports their status.
type Executor interface {
	// Start asks the executor to begin running the test. A nil error
	// means the execution was accepted, not that it finished.
	Start(ctx context.Context, jobID id.RunID, correlationID string, config json.RawMessage) error

	// Poll reports the current status of an accepted execution.
	Poll(ctx context.Context, correlationID string) (Report, error)
}
