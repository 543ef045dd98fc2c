package runq

import "errors"

var (
	// Admission-time errors, returned synchronously from Enqueue.
	ErrQueueFull    = errors.New("runq: queue full")
	ErrDuplicateJob = errors.New("runq: job with this correlation id already pending or running")

	// Lookup errors.
	ErrJobNotFound    = errors.New("runq: job not found")
	ErrRecordNotFound = errors.New("runq: test record not found")

	// Lifecycle errors.
	ErrInvalidTransition = errors.New("runq: invalid state transition")
	ErrNotRunning        = errors.New("runq: engine not running")

	// Execution-time errors, surfaced via events and the record store.
	ErrQueueWaitTimeout = errors.New("runq: queue wait timeout")
	ErrExecutionTimeout = errors.New("runq: execution timeout")
	ErrRetryExhausted   = errors.New("runq: retries exhausted")
)
