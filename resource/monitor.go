package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sampler produces one resource snapshot. The Status field of the
// returned snapshot is ignored; the monitor derives it.
type Sampler func(ctx context.Context) (Snapshot, error)

// Listener is notified when the derived status changes.
type Listener func(Snapshot)

// overloadedAfter is how many consecutive critical samples promote the
// status to overloaded.
const overloadedAfter = 3

// Monitor samples resources on a fixed cadence and derives the current
// Status. It is safe for concurrent use.
type Monitor struct {
	sampler    Sampler
	thresholds Thresholds
	interval   time.Duration
	maxAge     time.Duration
	logger     *slog.Logger

	mu           sync.RWMutex
	latest       *Snapshot
	criticalRun  int
	listeners    map[int]Listener
	nextListener int

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds overrides the default evaluation thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t }
}

// WithInterval sets the sampling cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithMaxAge sets the staleness bound beyond which the last snapshot is
// ignored and status fails open to healthy. Defaults to three sampling
// intervals.
func WithMaxAge(d time.Duration) Option {
	return func(m *Monitor) { m.maxAge = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a Monitor. A nil sampler is allowed and leaves the
// monitor permanently healthy.
func NewMonitor(sampler Sampler, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:    sampler,
		thresholds: DefaultThresholds(),
		interval:   10 * time.Second,
		logger:     slog.Default(),
		listeners:  make(map[int]Listener),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxAge <= 0 {
		m.maxAge = 3 * m.interval
	}
	return m
}

// Start launches the sampling loop. No-op without a sampler.
func (m *Monitor) Start(ctx context.Context) {
	if m.sampler == nil {
		return
	}
	m.wg.Add(1)
	go m.sampleLoop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) sampleLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sample(ctx)
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample takes one snapshot immediately. Sampler failures keep the
// previous snapshot; the staleness bound handles a sampler that stays
// broken.
func (m *Monitor) Sample(ctx context.Context) {
	if m.sampler == nil {
		return
	}

	snap, err := m.sampler(ctx)
	if err != nil {
		m.logger.Warn("resource sample failed", slog.String("error", err.Error()))
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	snap.Status = m.thresholds.Evaluate(snap)

	m.mu.Lock()
	if snap.Status == StatusCritical {
		m.criticalRun++
		if m.criticalRun >= overloadedAfter {
			snap.Status = StatusOverloaded
		}
	} else {
		m.criticalRun = 0
	}

	prev := m.latest
	m.latest = &snap

	var notify []Listener
	if prev == nil || prev.Status != snap.Status {
		notify = make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			notify = append(notify, l)
		}
	}
	m.mu.Unlock()

	for _, l := range notify {
		l(snap)
	}
}

// CurrentStatus returns the derived status of the most recent snapshot.
// Fails open to healthy when no snapshot exists or the last one is
// older than the staleness bound.
func (m *Monitor) CurrentStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return StatusHealthy
	}
	if time.Since(m.latest.Timestamp) > m.maxAge {
		return StatusHealthy
	}
	return m.latest.Status
}

// CurrentSnapshot returns a copy of the most recent snapshot, or nil if
// none has been produced.
func (m *Monitor) CurrentSnapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return nil
	}
	cp := *m.latest
	return &cp
}

// Subscribe registers a status-change listener and returns an
// unsubscribe function.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	key := m.nextListener
	m.nextListener++
	m.listeners[key] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, key)
		m.mu.Unlock()
	}
}

// RecommendedMaxConcurrency scales a configured cap by the current
// status. Advisory only; admission never consults it.
func (m *Monitor) RecommendedMaxConcurrency(configured int) int {
	switch m.CurrentStatus() {
	case StatusOverloaded:
		return 1
	case StatusCritical:
		return max(1, configured/4)
	case StatusWarning:
		return max(1, configured/2)
	default:
		return configured
	}
}
