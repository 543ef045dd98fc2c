package schedule

import (
	"time"

	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// Entry is one recurring test definition.
type Entry struct {
	ID id.ScheduleID `json:"id"`

	// Name is a human-readable label, unique per scheduler.
	Name string `json:"name"`

	// Expression is a standard 5-field cron expression or a descriptor
	// such as "@hourly" or "@every 30m".
	Expression string `json:"expression"`

	// Template is the job spec enqueued on each fire. Its
	// CorrelationID is used as a prefix; every fire gets a unique
	// correlation id.
	Template job.Spec `json:"template"`

	Enabled bool `json:"enabled"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// FireCount is how many times the entry has enqueued a job.
	FireCount int `json:"fire_count"`

	// LastError is the most recent enqueue failure, if any.
	LastError string `json:"last_error,omitempty"`
}

// Clone returns a deep-enough copy for handing to callers.
func (e *Entry) Clone() *Entry {
	out := *e
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		out.LastRunAt = &t
	}
	if e.NextRunAt != nil {
		t := *e.NextRunAt
		out.NextRunAt = &t
	}
	return &out
}
