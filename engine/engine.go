package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/admission"
	"github.com/XiangYd616/runq/backoff"
	"github.com/XiangYd616/runq/event"
	"github.com/XiangYd616/runq/executor"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
	"github.com/XiangYd616/runq/queue"
	"github.com/XiangYd616/runq/record"
	"github.com/XiangYd616/runq/record/memory"
	"github.com/XiangYd616/runq/resource"
	"github.com/XiangYd616/runq/track"
)

// Manager is the queue engine. It accepts jobs, admits them against
// per-class pools, drives executions through the executor client and
// reflects every transition into the record store and event bus.
type Manager struct {
	cfg     runq.Config
	logger  *slog.Logger
	exec    executor.Executor
	records record.Store
	monitor *resource.Monitor
	adm     *admission.Controller
	bus     *event.Bus
	bo      backoff.Strategy

	admOverrides []admission.Config

	// Run-loop owned state. Only the run loop touches these.
	pending *queue.PendingQueue
	tracker *track.Tracker
	pollers map[string]context.CancelFunc
	timers  map[string]*time.Timer

	cmdCh    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once

	baseCtx context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	mu      sync.Mutex
	started bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the default configuration.
func WithConfig(cfg runq.Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRecordStore sets the test-record store. Defaults to the
// in-memory store.
func WithRecordStore(s record.Store) Option {
	return func(m *Manager) { m.records = s }
}

// WithMonitor attaches a resource monitor. Without one, admission is
// never resource-gated.
func WithMonitor(mon *resource.Monitor) Option {
	return func(m *Manager) { m.monitor = mon }
}

// WithBus replaces the default event bus.
func WithBus(b *event.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithBackoff sets the retry backoff strategy. Defaults to a constant
// delay of Config.RetryDelay.
func WithBackoff(b backoff.Strategy) Option {
	return func(m *Manager) { m.bo = b }
}

// WithAdmissionConfigs overrides the per-class admission configs
// derived from Config, for callers that need rate limits or custom
// pools.
func WithAdmissionConfigs(configs ...admission.Config) Option {
	return func(m *Manager) { m.admOverrides = configs }
}

// New creates a Manager around the given executor client.
func New(exec executor.Executor, opts ...Option) (*Manager, error) {
	if exec == nil {
		return nil, fmt.Errorf("engine: nil executor")
	}

	m := &Manager{
		cfg:     runq.DefaultConfig(),
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		exec:    exec,
		pollers: make(map[string]context.CancelFunc),
		timers:  make(map[string]*time.Timer),
		cmdCh:   make(chan func()),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.records == nil {
		m.records = memory.New()
	}
	if m.bus == nil {
		m.bus = event.NewBus(event.WithLogger(m.logger))
	}
	if m.bo == nil {
		m.bo = backoff.NewConstant(m.cfg.RetryDelay)
	}

	configs := m.admOverrides
	if len(configs) == 0 {
		configs = []admission.Config{
			{Class: job.ClassRegular, MaxConcurrency: m.cfg.MaxConcurrentRegular},
			{Class: job.ClassStress, MaxConcurrency: m.cfg.MaxConcurrentStress},
		}
	}
	var status admission.StatusSource
	if m.monitor != nil {
		status = m.monitor
	}
	m.adm = admission.NewController(status, configs...)

	m.pending = queue.New(m.cfg.Weight)
	m.tracker = track.New(m.cfg.CompletedLogSize, m.cfg.FailedLogSize)

	return m, nil
}

// ── Lifecycle ───────────────────────────────────────────────────────

// Start launches the run loop and, if configured, the resource
// monitor. The passed context scopes startup only; use Stop to shut
// the engine down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("engine: already started")
	}
	m.started = true

	m.baseCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.group = &errgroup.Group{}

	if m.monitor != nil {
		m.monitor.Start(m.baseCtx)
	}

	m.group.Go(func() error {
		m.runLoop()
		return nil
	})

	m.logger.Info("queue engine started",
		"max_regular", m.cfg.MaxConcurrentRegular,
		"max_stress", m.cfg.MaxConcurrentStress,
		"max_queue", m.cfg.MaxQueueSize)
	return nil
}

// Stop shuts the engine down. Pending jobs stay pending in memory and
// are lost; running executions are abandoned mid-poll. The context
// bounds how long Stop waits for goroutines to drain.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return runq.ErrNotRunning
	}
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()

	select {
	case err := <-done:
		if m.monitor != nil {
			m.monitor.Stop()
		}
		m.logger.Info("queue engine stopped")
		return err
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// runLoop serializes every mutation of queue state. Commands arrive
// from public methods and poll goroutines; the ticker drives queue-wait
// expiry and admission.
func (m *Manager) runLoop() {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			m.shutdown()
			return
		case fn := <-m.cmdCh:
			fn()
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) shutdown() {
	m.cancel()
	for _, t := range m.timers {
		t.Stop()
	}
	// Run commands that raced with shutdown so their callers unblock.
	for {
		select {
		case fn := <-m.cmdCh:
			fn()
		default:
			return
		}
	}
}

// do runs fn on the run loop and waits for it to finish. fn must not
// block.
func (m *Manager) do(fn func()) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return runq.ErrNotRunning
	}

	done := make(chan struct{})
	select {
	case m.cmdCh <- func() { fn(); close(done) }:
	case <-m.stopCh:
		return runq.ErrNotRunning
	}
	<-done
	return nil
}

// submit is the fire-and-forget variant of do, used by poll goroutines
// and retry timers. Submissions after shutdown are dropped.
func (m *Manager) submit(fn func()) {
	select {
	case m.cmdCh <- fn:
	case <-m.stopCh:
	}
}

// ── Enqueue ─────────────────────────────────────────────────────────

// Enqueue validates the spec and either queues the job or, for an
// admissible stress job with fast-track enabled, starts it
// immediately. Returns the assigned job id.
func (m *Manager) Enqueue(ctx context.Context, spec job.Spec) (id.RunID, error) {
	if err := spec.Validate(); err != nil {
		return id.RunID{}, err
	}

	var (
		jobID  id.RunID
		oobErr error
	)
	err := m.do(func() {
		if m.pending.Len() >= m.cfg.MaxQueueSize {
			oobErr = runq.ErrQueueFull
			return
		}
		if m.tracker.HasCorrelation(spec.CorrelationID) {
			oobErr = runq.ErrDuplicateJob
			return
		}

		j := &job.Job{
			ID:                id.NewRunID(),
			CorrelationID:     spec.CorrelationID,
			Class:             spec.Class,
			Priority:          spec.Priority,
			Config:            spec.Config,
			State:             job.StateQueued,
			EstimatedDuration: spec.EstimatedDuration,
			MaxRetries:        spec.MaxRetries,
			QueuedAt:          time.Now().UTC(),
		}
		if err := m.tracker.Add(j); err != nil {
			oobErr = err
			return
		}
		jobID = j.ID

		if m.cfg.FastTrackEnabled && j.Class == job.ClassStress && m.adm.Acquire(j.Class) {
			m.logger.Debug("fast-tracking stress job", "job_id", j.ID, "correlation_id", j.CorrelationID)
			m.admit(j)
			return
		}

		m.pending.Insert(j)
		pos := m.pending.PositionOf(j.ID)
		wait := m.estimateWait(pos)
		m.publish(event.Event{Type: event.TypeQueued, Job: j.Clone(), Position: pos, EstimatedWait: wait})
		m.persistStatus(j, string(job.StateQueued), map[string]any{
			"queue_position": pos,
			"estimated_wait": wait.Seconds(),
		})
	})
	if err != nil {
		return id.RunID{}, err
	}
	if oobErr != nil {
		return id.RunID{}, oobErr
	}
	return jobID, nil
}

// ── Processing tick ─────────────────────────────────────────────────

func (m *Manager) tick() {
	m.expireStale()

	// Admit from the head only. A blocked head blocks everything
	// behind it, regardless of class; queue order is queue order.
	for {
		head := m.pending.Peek()
		if head == nil {
			return
		}
		if !m.adm.Acquire(head.Class) {
			return
		}
		m.pending.Pop()
		m.admit(head)
	}
}

func (m *Manager) expireStale() {
	now := time.Now()
	for _, j := range m.pending.Jobs() {
		if now.Sub(j.QueuedAt) <= m.cfg.QueueWaitTimeout {
			continue
		}
		m.pending.RemoveByID(j.ID)
		failed, err := m.tracker.FailTerminal(j.ID, runq.ErrQueueWaitTimeout)
		if err != nil {
			continue
		}
		m.logger.Warn("job expired waiting in queue",
			"job_id", j.ID, "correlation_id", j.CorrelationID, "waited", now.Sub(j.QueuedAt))
		m.persistFail(failed, runq.ErrQueueWaitTimeout.Error())
		m.publish(event.Event{Type: event.TypeFailed, Job: failed.Clone(), Error: runq.ErrQueueWaitTimeout.Error()})
	}
}

// admit transitions a job to running and launches its poll goroutine.
// The caller has already acquired the admission slot.
func (m *Manager) admit(j *job.Job) {
	if err := m.tracker.MarkRunning(j.ID); err != nil {
		// Should not happen on the run loop; give the slot back.
		m.adm.Release(j.Class)
		m.logger.Error("admit failed", "job_id", j.ID, "error", err)
		return
	}

	pctx, cancel := context.WithCancel(m.baseCtx)
	m.pollers[j.ID.String()] = cancel

	m.logger.Info("job started",
		"job_id", j.ID, "correlation_id", j.CorrelationID,
		"class", j.Class, "attempt", j.RetryCount+1)
	m.publish(event.Event{Type: event.TypeStarted, Job: j.Clone()})
	m.persistStatus(j, string(job.StateRunning), nil)

	run := execution{
		jobID:         j.ID,
		correlationID: j.CorrelationID,
		config:        j.Config,
		timeout:       j.ExecutionTimeout(m.cfg.ExecutionBuffer),
	}
	m.group.Go(func() error {
		m.runExecution(pctx, run)
		return nil
	})
}

// ── Execution polling ───────────────────────────────────────────────

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeCancelled
)

type execution struct {
	jobID         id.RunID
	correlationID string
	config        []byte
	timeout       time.Duration
}

// runExecution starts the execution and polls it to a terminal report
// or the execution timeout. It owns no queue state; terminal outcomes
// are handed back to the run loop.
func (m *Manager) runExecution(ctx context.Context, run execution) {
	if err := m.exec.Start(ctx, run.jobID, run.correlationID, run.config); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.reportOutcome(run.jobID, outcomeFailed, fmt.Errorf("executor start: %w", err), nil)
		return
	}

	deadline := time.NewTimer(run.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			m.reportOutcome(run.jobID, outcomeFailed, runq.ErrExecutionTimeout, nil)
			return
		case <-ticker.C:
			rep, err := m.exec.Poll(ctx, run.correlationID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.reportOutcome(run.jobID, outcomeFailed, fmt.Errorf("executor poll: %w", err), nil)
				return
			}
			switch rep.Status {
			case executor.StatusCompleted:
				m.reportOutcome(run.jobID, outcomeCompleted, nil, rep.Results)
				return
			case executor.StatusFailed:
				m.reportOutcome(run.jobID, outcomeFailed, fmt.Errorf("execution failed: %s", rep.Error), nil)
				return
			case executor.StatusCancelled:
				m.reportOutcome(run.jobID, outcomeCancelled, nil, nil)
				return
			default:
				if rep.Progress != nil {
					m.reportProgress(run.jobID, *rep.Progress)
				}
			}
		}
	}
}

func (m *Manager) reportProgress(jobID id.RunID, pct int) {
	m.submit(func() {
		j := m.tracker.Get(jobID)
		if j == nil || j.State != job.StateRunning {
			return
		}
		prev := j.Progress
		m.tracker.SetProgress(jobID, pct)
		if j.Progress == prev {
			return
		}
		m.publish(event.Event{Type: event.TypeProgress, Job: j.Clone()})
		m.persistStatus(j, string(job.StateRunning), map[string]any{"progress": j.Progress})
	})
}

func (m *Manager) reportOutcome(jobID id.RunID, o outcome, failure error, results []byte) {
	m.submit(func() { m.handleOutcome(jobID, o, failure, results) })
}

// handleOutcome runs on the run loop and settles a terminal executor
// report: release the slot, then complete, cancel, retry or fail.
func (m *Manager) handleOutcome(jobID id.RunID, o outcome, failure error, results []byte) {
	key := jobID.String()
	cancel, ok := m.pollers[key]
	if !ok {
		// The job was cancelled while the report was in flight.
		return
	}
	cancel()
	delete(m.pollers, key)

	j := m.tracker.Get(jobID)
	if j == nil || j.State != job.StateRunning {
		return
	}
	m.adm.Release(j.Class)

	switch o {
	case outcomeCompleted:
		done, err := m.tracker.MarkCompleted(jobID, results)
		if err != nil {
			m.logger.Error("complete failed", "job_id", jobID, "error", err)
			return
		}
		m.logger.Info("job completed",
			"job_id", jobID, "correlation_id", done.CorrelationID,
			"duration", done.FinishedAt.Sub(*done.StartedAt))
		m.persistComplete(done, results)
		m.publish(event.Event{Type: event.TypeCompleted, Job: done.Clone()})

	case outcomeCancelled:
		done, err := m.tracker.MarkCancelled(jobID, "cancelled by executor")
		if err != nil {
			return
		}
		m.persistCancel(done, "cancelled by executor")
		m.publish(event.Event{Type: event.TypeCancelled, Job: done.Clone()})

	case outcomeFailed:
		m.handleFailure(jobID, failure)
	}
}

func (m *Manager) handleFailure(jobID id.RunID, failure error) {
	retryable, j, err := m.tracker.RecordFailure(jobID, failure)
	if err != nil {
		return
	}

	if !retryable {
		m.logger.Warn("job failed, retries exhausted",
			"job_id", jobID, "correlation_id", j.CorrelationID,
			"attempts", j.RetryCount+1, "error", failure)
		msg := fmt.Sprintf("%s: %s", runq.ErrRetryExhausted.Error(), failure.Error())
		if j.MaxRetries == 0 {
			msg = failure.Error()
		}
		m.persistFail(j, msg)
		m.publish(event.Event{Type: event.TypeFailed, Job: j.Clone(), Error: msg})
		return
	}

	delay := m.bo.Delay(j.RetryCount)
	m.logger.Info("job will retry",
		"job_id", jobID, "correlation_id", j.CorrelationID,
		"attempt", j.RetryCount, "max_retries", j.MaxRetries,
		"delay", delay, "error", failure)
	m.publish(event.Event{Type: event.TypeRetrying, Job: j.Clone(), Error: failure.Error()})

	m.timers[jobID.String()] = time.AfterFunc(delay, func() {
		m.submit(func() { m.requeueForRetry(jobID) })
	})
}

// requeueForRetry puts a failed job back in the pending queue at its
// original priority. Retries never fast-track.
func (m *Manager) requeueForRetry(jobID id.RunID) {
	delete(m.timers, jobID.String())
	if err := m.tracker.Requeue(jobID); err != nil {
		// Cancelled while waiting out the retry delay.
		return
	}
	j := m.tracker.Get(jobID)
	m.pending.Insert(j)
	pos := m.pending.PositionOf(j.ID)
	wait := m.estimateWait(pos)
	m.publish(event.Event{Type: event.TypeQueued, Job: j.Clone(), Position: pos, EstimatedWait: wait})
	m.persistStatus(j, string(job.StateQueued), map[string]any{
		"queue_position": pos,
		"retry_count":    j.RetryCount,
	})
}

// ── Cancel ──────────────────────────────────────────────────────────

// Cancel cancels a job by id. Pending jobs are removed from the queue;
// running jobs have their poll goroutine stopped and their slot
// released. Returns false if the job is unknown or already terminal.
func (m *Manager) Cancel(ctx context.Context, jobID id.RunID, reason string) (bool, error) {
	var cancelled bool
	err := m.do(func() {
		j := m.tracker.Get(jobID)
		if j == nil || j.State.Terminal() {
			return
		}

		switch j.State {
		case job.StateQueued:
			m.pending.RemoveByID(jobID)
			if t, ok := m.timers[jobID.String()]; ok {
				t.Stop()
				delete(m.timers, jobID.String())
			}
		case job.StateRunning:
			if cancel, ok := m.pollers[jobID.String()]; ok {
				cancel()
				delete(m.pollers, jobID.String())
				m.adm.Release(j.Class)
			} else if t, ok := m.timers[jobID.String()]; ok {
				// Waiting out a retry delay; the slot is already free.
				t.Stop()
				delete(m.timers, jobID.String())
			}
		}

		done, err := m.tracker.MarkCancelled(jobID, reason)
		if err != nil {
			return
		}
		cancelled = true
		m.logger.Info("job cancelled", "job_id", jobID, "correlation_id", done.CorrelationID, "reason", reason)
		m.persistCancel(done, reason)
		m.publish(event.Event{Type: event.TypeCancelled, Job: done.Clone()})
	})
	return cancelled, err
}

// ── Queries ─────────────────────────────────────────────────────────

// Stats is a point-in-time snapshot of queue health.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	RunningJobs []*job.Job `json:"running_jobs,omitempty"`
	NextInQueue *job.Job   `json:"next_in_queue,omitempty"`

	AverageExecutionTime time.Duration `json:"average_execution_time"`
	EstimatedWait        time.Duration `json:"estimated_wait"`

	ResourceStatus resource.Status `json:"resource_status,omitempty"`
}

// GetStats returns a snapshot of counters, running jobs and the head
// of the queue.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.do(func() {
		s.Queued, s.Running, s.Completed, s.Failed, s.Cancelled = m.tracker.Counts()
		for _, j := range m.tracker.Running() {
			s.RunningJobs = append(s.RunningJobs, j.Clone())
		}
		if head := m.pending.Peek(); head != nil {
			s.NextInQueue = head.Clone()
		}
		s.AverageExecutionTime = m.tracker.AverageExecutionTime(m.cfg.DefaultSlotTime)
		s.EstimatedWait = m.estimateWait(m.pending.Len() - 1)
	})
	if err != nil {
		return Stats{}, err
	}
	if m.monitor != nil {
		s.ResourceStatus = m.monitor.CurrentStatus()
	}
	return s, nil
}

// Get returns a snapshot of the job, or runq.ErrJobNotFound.
func (m *Manager) Get(ctx context.Context, jobID id.RunID) (*job.Job, error) {
	var snap *job.Job
	err := m.do(func() {
		if j := m.tracker.Get(jobID); j != nil {
			snap = j.Clone()
		}
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, runq.ErrJobNotFound
	}
	return snap, nil
}

// QueuePositionOf returns the zero-based pending position of the job,
// or -1 if it is not pending.
func (m *Manager) QueuePositionOf(ctx context.Context, jobID id.RunID) (int, error) {
	pos := -1
	err := m.do(func() { pos = m.pending.PositionOf(jobID) })
	return pos, err
}

// EstimateWait returns the advisory wait estimate for a pending job,
// or zero if it is not pending.
func (m *Manager) EstimateWait(ctx context.Context, jobID id.RunID) (time.Duration, error) {
	var wait time.Duration
	err := m.do(func() {
		pos := m.pending.PositionOf(jobID)
		if pos < 0 {
			return
		}
		wait = m.estimateWait(pos)
	})
	return wait, err
}

// AddListener registers a synchronous event listener. The returned
// function removes it.
func (m *Manager) AddListener(l event.Listener) func() {
	return m.bus.AddListener(l)
}

// Subscribe returns a channel-based event subscriber.
func (m *Manager) Subscribe() *event.Subscriber {
	return m.bus.Subscribe()
}

// Bus exposes the engine's event bus for external wiring.
func (m *Manager) Bus() *event.Bus { return m.bus }

// estimateWait assumes each job ahead of (and including) position pos
// occupies one slot for the observed average execution time.
func (m *Manager) estimateWait(pos int) time.Duration {
	if pos < 0 {
		return 0
	}
	slot := m.tracker.AverageExecutionTime(m.cfg.DefaultSlotTime)
	return time.Duration(pos+1) * slot
}

// ── Record persistence ──────────────────────────────────────────────
//
// Record updates are best effort. The queue is the source of truth for
// lifecycle; a store outage must never stall or fail a transition.

func (m *Manager) persistStatus(j *job.Job, status string, extra map[string]any) {
	ctx, cancelFn := context.WithTimeout(m.baseCtx, 5*time.Second)
	defer cancelFn()
	if err := m.records.UpdateStatus(ctx, j.CorrelationID, status, extra); err != nil {
		m.logger.Warn("record status update failed",
			"correlation_id", j.CorrelationID, "status", status, "error", err)
	}
}

func (m *Manager) persistComplete(j *job.Job, results []byte) {
	ctx, cancelFn := context.WithTimeout(m.baseCtx, 5*time.Second)
	defer cancelFn()
	if err := m.records.Complete(ctx, j.CorrelationID, results); err != nil {
		m.logger.Warn("record complete failed", "correlation_id", j.CorrelationID, "error", err)
	}
}

func (m *Manager) persistFail(j *job.Job, msg string) {
	ctx, cancelFn := context.WithTimeout(m.baseCtx, 5*time.Second)
	defer cancelFn()
	if err := m.records.Fail(ctx, j.CorrelationID, msg); err != nil {
		m.logger.Warn("record fail failed", "correlation_id", j.CorrelationID, "error", err)
	}
}

func (m *Manager) persistCancel(j *job.Job, reason string) {
	ctx, cancelFn := context.WithTimeout(m.baseCtx, 5*time.Second)
	defer cancelFn()
	if err := m.records.Cancel(ctx, j.CorrelationID, reason); err != nil {
		m.logger.Warn("record cancel failed", "correlation_id", j.CorrelationID, "error", err)
	}
}

func (m *Manager) publish(evt event.Event) {
	m.bus.Publish(evt)
}
