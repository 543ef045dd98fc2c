package track

import (
	"fmt"
	"time"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// Tracker is the authoritative record of job lifecycle state.
type Tracker struct {
	active map[string]*job.Job // job id → queued or running job
	byCorr map[string]*job.Job // correlation id → active job

	completed *ring
	failed    *ring
	cancelled *ring
}

// New creates a Tracker with the given terminal-log bounds.
func New(completedLogSize, failedLogSize int) *Tracker {
	return &Tracker{
		active:    make(map[string]*job.Job),
		byCorr:    make(map[string]*job.Job),
		completed: newRing(completedLogSize),
		failed:    newRing(failedLogSize),
		cancelled: newRing(failedLogSize),
	}
}

// Add registers a newly enqueued job. The job must be in StateQueued.
func (t *Tracker) Add(j *job.Job) error {
	if j.State != job.StateQueued {
		return fmt.Errorf("%w: add in state %q", runq.ErrInvalidTransition, j.State)
	}
	if _, dup := t.byCorr[j.CorrelationID]; dup {
		return runq.ErrDuplicateJob
	}
	t.active[j.ID.String()] = j
	t.byCorr[j.CorrelationID] = j
	return nil
}

// Get returns the active job with the given id, or nil.
func (t *Tracker) Get(jobID id.RunID) *job.Job {
	return t.active[jobID.String()]
}

// HasCorrelation reports whether an active (queued or running) job
// carries the given correlation id.
func (t *Tracker) HasCorrelation(correlationID string) bool {
	_, ok := t.byCorr[correlationID]
	return ok
}

// MarkRunning transitions a queued job to running, setting StartedAt
// exactly once.
func (t *Tracker) MarkRunning(jobID id.RunID) error {
	j, err := t.activeIn(jobID, job.StateQueued)
	if err != nil {
		return err
	}
	j.State = job.StateRunning
	if j.StartedAt == nil {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
	return nil
}

// Requeue returns a running job to the queued state after a retryable
// failure. StartedAt is preserved from the first admission.
func (t *Tracker) Requeue(jobID id.RunID) error {
	j, err := t.activeIn(jobID, job.StateRunning)
	if err != nil {
		return err
	}
	j.State = job.StateQueued
	j.Progress = 0
	return nil
}

// MarkCompleted transitions a running job to terminal completed and
// moves it to the completed log.
func (t *Tracker) MarkCompleted(jobID id.RunID, results []byte) (*job.Job, error) {
	j, err := t.activeIn(jobID, job.StateRunning)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.FinishedAt = &now
	j.Progress = 100
	j.Results = results
	t.retire(j, t.completed)
	return j, nil
}

// RecordFailure notes an execution failure. If the retry budget allows,
// the job's retry counter is incremented and retryable is true; the
// caller is responsible for requeueing via Requeue after its retry
// delay. Otherwise the job is moved to terminal failed and logged.
func (t *Tracker) RecordFailure(jobID id.RunID, failure error) (retryable bool, j *job.Job, err error) {
	j, err = t.activeIn(jobID, job.StateRunning)
	if err != nil {
		return false, nil, err
	}
	j.LastError = failure.Error()

	if j.RetryCount < j.MaxRetries {
		j.RetryCount++
		return true, j, nil
	}

	now := time.Now().UTC()
	j.State = job.StateFailed
	j.FinishedAt = &now
	t.retire(j, t.failed)
	return false, j, nil
}

// FailTerminal moves a job straight to terminal failed, bypassing the
// retry budget. Used for queue-wait timeouts, which are admission
// starvation rather than execution failures.
func (t *Tracker) FailTerminal(jobID id.RunID, failure error) (*job.Job, error) {
	j := t.active[jobID.String()]
	if j == nil {
		return nil, runq.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.State = job.StateFailed
	j.FinishedAt = &now
	j.LastError = failure.Error()
	t.retire(j, t.failed)
	return j, nil
}

// MarkCancelled transitions a queued or running job to terminal
// cancelled.
func (t *Tracker) MarkCancelled(jobID id.RunID, reason string) (*job.Job, error) {
	j := t.active[jobID.String()]
	if j == nil {
		return nil, runq.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.State = job.StateCancelled
	j.FinishedAt = &now
	if reason != "" {
		j.LastError = reason
	}
	t.retire(j, t.cancelled)
	return j, nil
}

// SetProgress records the last polled progress percentage for a
// running job. Out-of-range values are clamped.
func (t *Tracker) SetProgress(jobID id.RunID, pct int) {
	j := t.active[jobID.String()]
	if j == nil || j.State != job.StateRunning {
		return
	}
	j.Progress = min(100, max(0, pct))
}

// Running returns the currently running jobs.
func (t *Tracker) Running() []*job.Job {
	out := make([]*job.Job, 0, len(t.active))
	for _, j := range t.active {
		if j.State == job.StateRunning {
			out = append(out, j)
		}
	}
	return out
}

// Counts returns the number of active queued jobs, active running
// jobs, and retired completed/failed/cancelled jobs.
func (t *Tracker) Counts() (queued, running, completed, failed, cancelled int) {
	for _, j := range t.active {
		switch j.State {
		case job.StateQueued:
			queued++
		case job.StateRunning:
			running++
		}
	}
	return queued, running, t.completed.total, t.failed.total, t.cancelled.total
}

// AverageExecutionTime returns the mean wall-clock execution time over
// the completed log, or fallback if the log is empty.
func (t *Tracker) AverageExecutionTime(fallback time.Duration) time.Duration {
	var sum time.Duration
	var n int
	for _, j := range t.completed.items() {
		if j.StartedAt == nil || j.FinishedAt == nil {
			continue
		}
		sum += j.FinishedAt.Sub(*j.StartedAt)
		n++
	}
	if n == 0 {
		return fallback
	}
	return sum / time.Duration(n)
}

// CompletedLog returns the retained completed jobs, oldest first.
func (t *Tracker) CompletedLog() []*job.Job { return t.completed.items() }

// FailedLog returns the retained terminally failed jobs, oldest first.
func (t *Tracker) FailedLog() []*job.Job { return t.failed.items() }

func (t *Tracker) activeIn(jobID id.RunID, want job.State) (*job.Job, error) {
	j := t.active[jobID.String()]
	if j == nil {
		return nil, runq.ErrJobNotFound
	}
	if j.State != want {
		return nil, fmt.Errorf("%w: %q → wanted %q", runq.ErrInvalidTransition, j.State, want)
	}
	return j, nil
}

// retire moves a job out of the active map into a terminal log.
func (t *Tracker) retire(j *job.Job, log *ring) {
	delete(t.active, j.ID.String())
	delete(t.byCorr, j.CorrelationID)
	log.push(j)
}

// ──────────────────────────────────────────────────
// Bounded terminal log
// ──────────────────────────────────────────────────

// ring is a bounded append-only log that drops its oldest entry when
// full. total counts every push, not just retained entries.
type ring struct {
	buf   []*job.Job
	cap   int
	total int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{cap: capacity}
}

func (r *ring) push(j *job.Job) {
	r.total++
	if len(r.buf) == r.cap {
		copy(r.buf, r.buf[1:])
		r.buf[len(r.buf)-1] = j
		return
	}
	r.buf = append(r.buf, j)
}

func (r *ring) items() []*job.Job {
	out := make([]*job.Job, len(r.buf))
	copy(out, r.buf)
	return out
}
