package job

import (
	"encoding/json"
	"time"

	"github.com/XiangYd616/runq/id"
)

// State represents the lifecycle state of a queued test run.
type State string

const (
	// StateQueued means the job is waiting in the pending queue.
	StateQueued State = "queued"
	// StateRunning means the job has been admitted and handed to the executor.
	StateRunning State = "running"
	// StateCompleted means the executor reported a successful finish.
	StateCompleted State = "completed"
	// StateFailed means the job failed terminally (retries exhausted or
	// a non-retryable failure such as queue-wait timeout).
	StateFailed State = "failed"
	// StateCancelled means the job was explicitly cancelled.
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Class determines which concurrency pool and admission path apply.
type Class string

const (
	// ClassRegular covers performance, SEO, security and API tests.
	ClassRegular Class = "regular"
	// ClassStress covers load-generation tests. Stress jobs have their
	// own, larger concurrency pool and are eligible for fast-track
	// admission at enqueue time.
	ClassStress Class = "stress"
)

// Job represents one requested test execution tracked by the queue.
type Job struct {
	// ID is assigned at enqueue time and stable for the job's lifetime.
	ID id.RunID `json:"id"`

	// CorrelationID is the caller-supplied identifier, typically the
	// persisted test-record id. Unique among jobs currently queued or
	// running; terminal jobs may reuse it.
	CorrelationID string `json:"correlation_id"`

	Class    Class    `json:"class"`
	Priority Priority `json:"priority"`

	// Config holds opaque execution parameters passed through to the
	// executor unmodified.
	Config json.RawMessage `json:"config,omitempty"`

	State State `json:"state"`

	// Progress is the last known completion percentage (0–100).
	Progress int `json:"progress"`

	// EstimatedDuration is used only for wait-time estimation and the
	// execution timeout, never enforced on the executor itself.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`

	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`

	QueuedAt time.Time `json:"queued_at"`
	// StartedAt is set exactly once, when the job leaves the pending queue.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Results holds the executor-reported result payload, opaque to runq.
	Results json.RawMessage `json:"results,omitempty"`
}

// Clone returns a deep-enough copy for handing out of the run loop.
// Raw payloads are shared; they are treated as immutable.
func (j *Job) Clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// ExecutionTimeout returns the deadline budget for one execution
// attempt: the estimated duration plus buffer. Zero estimates fall back
// to the buffer alone times two, so un-estimated jobs still time out.
func (j *Job) ExecutionTimeout(buffer time.Duration) time.Duration {
	if j.EstimatedDuration <= 0 {
		return 2 * buffer
	}
	return j.EstimatedDuration + buffer
}
