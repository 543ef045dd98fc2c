package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/XiangYd616/runq/id"
)

// Listener receives lifecycle events synchronously. A listener that
// panics is isolated and logged; it never aborts the emitting tick.
type Listener func(Event)

// DefaultBufferSize is the per-channel-subscriber event buffer.
const DefaultBufferSize = 256

// Bus fans lifecycle events out to callback listeners and channel
// subscribers. It is safe for concurrent use.
type Bus struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[string]Listener
	subs      map[string]*Subscriber

	bufferSize int

	totalPublished atomic.Int64
	totalDropped   atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Bus) { b.bufferSize = n }
}

// NewBus creates an event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger:     slog.Default(),
		listeners:  make(map[string]Listener),
		subs:       make(map[string]*Subscriber),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddListener registers a callback listener and returns an unsubscribe
// function.
func (b *Bus) AddListener(l Listener) func() {
	key := id.NewSubscriberID().String()

	b.mu.Lock()
	b.listeners[key] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, key)
		b.mu.Unlock()
	}
}

// Subscribe registers a channel subscriber. Events are dropped (and
// counted) rather than blocking the engine when the subscriber's buffer
// is full. Close the subscriber to unsubscribe.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{
		id:  id.NewSubscriberID().String(),
		ch:  make(chan Event, b.bufferSize),
		bus: b,
	}

	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()

	return s
}

// Publish delivers the event to all listeners and subscribers. Callback
// listeners run synchronously on the caller's goroutine with panic
// isolation; channel subscribers get non-blocking sends.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.totalPublished.Add(1)

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}

	// Channel sends happen under the read lock so a concurrent Close
	// (which takes the write lock) can never close a channel mid-send.
	for _, s := range b.subs {
		select {
		case s.ch <- evt:
		default:
			b.totalDropped.Add(1)
			b.logger.Debug("event dropped for slow subscriber",
				slog.String("subscriber_id", s.id),
				slog.String("event_type", string(evt.Type)),
			)
		}
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		b.safeInvoke(l, evt)
	}
}

func (b *Bus) safeInvoke(l Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				slog.String("event_type", string(evt.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	l(evt)
}

// Published returns the total number of events published.
func (b *Bus) Published() int64 { return b.totalPublished.Load() }

// Dropped returns the total number of events dropped on full
// subscriber buffers.
func (b *Bus) Dropped() int64 { return b.totalDropped.Load() }

// Subscriber receives events over a buffered channel.
type Subscriber struct {
	id     string
	ch     chan Event
	bus    *Bus
	closed atomic.Bool
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only event channel.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Close unsubscribes and closes the event channel. Safe to call twice.
func (s *Subscriber) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	close(s.ch)
	s.bus.mu.Unlock()
}
