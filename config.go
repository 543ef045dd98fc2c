package runq

import (
	"time"

	"github.com/XiangYd616/runq/job"
)

// Config holds process-wide queue configuration. It is immutable after
// the engine is constructed.
type Config struct {
	// MaxConcurrentRegular caps simultaneously running regular tests.
	MaxConcurrentRegular int

	// MaxConcurrentStress caps simultaneously running stress tests.
	// Stress tests are the product's core feature and get a larger,
	// more resource-tolerant pool than regular tests.
	MaxConcurrentStress int

	// MaxQueueSize caps the pending queue. Enqueue returns ErrQueueFull
	// beyond it.
	MaxQueueSize int

	// QueueWaitTimeout is the maximum time a job may remain pending
	// before being force-failed. Non-retryable.
	QueueWaitTimeout time.Duration

	// RetryDelay is the base delay before a failed execution is
	// requeued. The effective delay is computed by the engine's
	// backoff strategy (constant by default).
	RetryDelay time.Duration

	// TickInterval is how often the processing tick runs.
	TickInterval time.Duration

	// PollInterval is how often a running job's status is polled from
	// the record store.
	PollInterval time.Duration

	// ExecutionBuffer is added to a job's estimated duration to form
	// its execution timeout. Execution timeouts count against retries.
	ExecutionBuffer time.Duration

	// DefaultSlotTime is the per-job duration assumed by the wait-time
	// estimate (pending count × slot time). Advisory only.
	DefaultSlotTime time.Duration

	// CompletedLogSize bounds the completed-jobs log used for the
	// average-execution-time statistic. Oldest entries are dropped.
	CompletedLogSize int

	// FailedLogSize bounds the terminal-failure log.
	FailedLogSize int

	// PriorityWeights maps job priorities to integer weights. Higher
	// weights dequeue first.
	PriorityWeights map[job.Priority]int

	// FastTrackEnabled allows a stress job that is admissible at the
	// instant of enqueue to bypass the queue entirely.
	FastTrackEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRegular: 3,
		MaxConcurrentStress:  10,
		MaxQueueSize:         100,
		QueueWaitTimeout:     10 * time.Minute,
		RetryDelay:           5 * time.Second,
		TickInterval:         1 * time.Second,
		PollInterval:         2 * time.Second,
		ExecutionBuffer:      60 * time.Second,
		DefaultSlotTime:      30 * time.Second,
		CompletedLogSize:     100,
		FailedLogSize:        100,
		PriorityWeights:      job.DefaultWeights(),
		FastTrackEnabled:     true,
	}
}

// Weight returns the configured weight for p, falling back to the
// default weight table for unknown priorities.
func (c Config) Weight(p job.Priority) int {
	if w, ok := c.PriorityWeights[p]; ok {
		return w
	}
	return job.DefaultWeights()[p]
}
