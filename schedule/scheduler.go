package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"

	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue jobs.
// engine.Manager.Enqueue satisfies it.
type EnqueueFunc func(ctx context.Context, spec job.Spec) (id.RunID, error)

// cronParser supports standard 5-field cron and descriptors like
// "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseExpression parses a cron expression and returns the schedule.
func ParseExpression(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler fires due entries on a tick loop.
type Scheduler struct {
	enqueue      EnqueueFunc
	logger       *slog.Logger
	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry // keyed by entry id
	parsed  map[string]cronlib.Schedule
	byName  map[string]string // name → entry id

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler that enqueues through fn.
func NewScheduler(fn EnqueueFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		enqueue:      fn,
		logger:       slog.Default(),
		tickInterval: 1 * time.Second,
		entries:      make(map[string]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
		byName:       make(map[string]string),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a recurring test. The expression is validated here;
// the first fire happens at its next activation after now.
func (s *Scheduler) Add(name, expression string, template job.Spec) (id.ScheduleID, error) {
	sched, err := ParseExpression(expression)
	if err != nil {
		return id.ScheduleID{}, fmt.Errorf("schedule: parse %q: %w", expression, err)
	}
	if template.CorrelationID == "" {
		return id.ScheduleID{}, fmt.Errorf("schedule: template missing correlation id prefix")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; exists {
		return id.ScheduleID{}, fmt.Errorf("schedule: entry %q already exists", name)
	}

	next := sched.Next(time.Now())
	e := &Entry{
		ID:         id.NewScheduleID(),
		Name:       name,
		Expression: expression,
		Template:   template,
		Enabled:    true,
		NextRunAt:  &next,
	}
	s.entries[e.ID.String()] = e
	s.parsed[e.ID.String()] = sched
	s.byName[name] = e.ID.String()

	s.logger.Info("schedule added", "name", name, "expression", expression, "next_run", next)
	return e.ID, nil
}

// Remove deletes an entry. Returns false if it does not exist.
func (s *Scheduler) Remove(scheduleID id.ScheduleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scheduleID.String()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	delete(s.parsed, key)
	delete(s.byName, e.Name)
	return true
}

// SetEnabled pauses or resumes an entry.
func (s *Scheduler) SetEnabled(scheduleID id.ScheduleID, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[scheduleID.String()]
	if !ok {
		return false
	}
	if !e.Enabled && enabled {
		// Recompute so a long pause does not fire immediately.
		next := s.parsed[scheduleID.String()].Next(time.Now())
		e.NextRunAt = &next
	}
	e.Enabled = enabled
	return true
}

// List returns a snapshot of all entries.
func (s *Scheduler) List() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	return out
}

// Start launches the tick loop.
func (s *Scheduler) Start(_ context.Context) {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("scheduler started", "tick_interval", s.tickInterval)
}

// Stop waits for the tick loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	var due []*Entry
	for _, e := range s.entries {
		if e.Enabled && e.NextRunAt != nil && !e.NextRunAt.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e, now)
	}
}

func (s *Scheduler) fire(e *Entry, now time.Time) {
	spec := e.Template
	spec.CorrelationID = fmt.Sprintf("%s-%s", e.Template.CorrelationID, uuid.NewString()[:8])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	jobID, err := s.enqueue(ctx, spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.LastRunAt = &now
	next := s.parsed[e.ID.String()].Next(now)
	e.NextRunAt = &next

	if err != nil {
		// A full queue is expected under load; the entry simply fires
		// again at its next activation.
		e.LastError = err.Error()
		s.logger.Warn("schedule fire failed", "name", e.Name, "error", err)
		return
	}
	e.FireCount++
	e.LastError = ""
	s.logger.Info("schedule fired", "name", e.Name, "job_id", jobID, "next_run", next)
}
