// Package event provides the queue's lifecycle event bus. Listeners
// observe job transitions (queued, started, progress, completed,
// failed, cancelled) without ever holding references into the engine's
// state; every event carries its own job snapshot.
package event

import (
	"time"

	"github.com/XiangYd616/runq/job"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeQueued    Type = "queued"
	TypeStarted   Type = "started"
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
	TypeRetrying  Type = "retrying"
	TypeCancelled Type = "cancelled"
)

// Event is the envelope delivered to listeners.
type Event struct {
	// Type identifies the lifecycle transition.
	Type Type `json:"type"`

	// Job is a snapshot taken at emission time. Listeners may retain it.
	Job *job.Job `json:"job"`

	// Position is the zero-based queue position, set on queued events.
	Position int `json:"position,omitempty"`

	// EstimatedWait is the advisory wait estimate, set on queued events.
	EstimatedWait time.Duration `json:"estimated_wait,omitempty"`

	// Error carries the failure message on failed and retrying events.
	Error string `json:"error,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`
}
