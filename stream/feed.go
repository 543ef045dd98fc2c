// Package stream pushes queue lifecycle events to WebSocket clients.
// Each connection gets its own bus subscription; a slow client drops
// events rather than stalling the bus or other clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/XiangYd616/runq/event"
	"github.com/XiangYd616/runq/id"
)

// Option configures a Feed.
type Option func(*Feed)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

// WithWriteTimeout bounds each frame write. Default 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(f *Feed) { f.writeTimeout = d }
}

// Feed is an http.Handler that upgrades requests to WebSocket and
// relays bus events as JSON text frames. The "types" query parameter
// optionally narrows delivery to a comma-separated set of event types.
type Feed struct {
	bus          *event.Bus
	logger       *slog.Logger
	writeTimeout time.Duration

	mu     sync.Mutex
	conns  map[string]net.Conn
	closed bool
}

// NewFeed creates a Feed over the given bus.
func NewFeed(bus *event.Bus, opts ...Option) *Feed {
	f := &Feed{
		bus:          bus,
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		conns:        make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ServeHTTP upgrades the connection and starts relaying events.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r.URL.Query().Get("types"))

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connID := id.NewSubscriberID().String()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.conns[connID] = conn
	f.mu.Unlock()

	// Subscribe before returning so a client observed via Count never
	// misses events published right after the handshake.
	sub := f.bus.Subscribe()
	go f.serve(connID, conn, sub, filter)
}

// Count returns the number of connected clients.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Close disconnects all clients. The feed accepts no new connections
// afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	conns := make([]net.Conn, 0, len(f.conns))
	for _, c := range f.conns {
		conns = append(conns, c)
	}
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (f *Feed) serve(connID string, conn net.Conn, sub *event.Subscriber, filter map[event.Type]bool) {
	defer func() {
		sub.Close()
		conn.Close()
		f.mu.Lock()
		delete(f.conns, connID)
		f.mu.Unlock()
	}()

	f.logger.Debug("stream client connected", "conn_id", connID)

	// Reader goroutine: answers control frames and detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := wsutil.ReadClientText(conn); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if len(filter) > 0 && !filter[evt.Type] {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				f.logger.Error("event marshal failed", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
			if err := wsutil.WriteServerText(conn, data); err != nil {
				f.logger.Debug("stream client write failed", "conn_id", connID, "error", err)
				return
			}
		}
	}
}

func parseFilter(raw string) map[event.Type]bool {
	if raw == "" {
		return nil
	}
	out := make(map[event.Type]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[event.Type(part)] = true
		}
	}
	return out
}
