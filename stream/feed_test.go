package stream

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/XiangYd616/runq/event"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

func dialFeed(t *testing.T, srv *httptest.Server, query string) *wsConn {
	t.Helper()
	url := "ws://" + strings.TrimPrefix(srv.URL, "http://") + query
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("ws.Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsConn{t: t, conn: conn}
}

type wsConn struct {
	t    *testing.T
	conn net.Conn
}

func (c *wsConn) readEvent() event.Event {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(c.conn)
	if err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	var evt event.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		c.t.Fatalf("unmarshal event: %v", err)
	}
	return evt
}

func testEvent(et event.Type, correlationID string) event.Event {
	return event.Event{
		Type: et,
		Job:  &job.Job{ID: id.NewRunID(), CorrelationID: correlationID},
	}
}

func waitCount(t *testing.T, f *Feed, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", f.Count(), want)
}

func TestFeedRelaysEvents(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(bus)
	defer feed.Close()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	client := dialFeed(t, srv, "")
	waitCount(t, feed, 1)

	bus.Publish(testEvent(event.TypeQueued, "test-1"))
	evt := client.readEvent()
	if evt.Type != event.TypeQueued || evt.Job.CorrelationID != "test-1" {
		t.Fatalf("got %s/%s", evt.Type, evt.Job.CorrelationID)
	}
}

func TestFeedTypeFilter(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(bus)
	defer feed.Close()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	client := dialFeed(t, srv, "?types=completed,failed")
	waitCount(t, feed, 1)

	bus.Publish(testEvent(event.TypeQueued, "skip"))
	bus.Publish(testEvent(event.TypeProgress, "skip"))
	bus.Publish(testEvent(event.TypeCompleted, "keep"))

	evt := client.readEvent()
	if evt.Type != event.TypeCompleted || evt.Job.CorrelationID != "keep" {
		t.Fatalf("filter passed %s/%s", evt.Type, evt.Job.CorrelationID)
	}
}

func TestFeedClientDisconnect(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(bus)
	defer feed.Close()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	client := dialFeed(t, srv, "")
	waitCount(t, feed, 1)

	client.conn.Close()
	waitCount(t, feed, 0)

	// The bus keeps working with no clients attached.
	bus.Publish(testEvent(event.TypeQueued, "later"))
}

func TestFeedClose(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(bus)
	srv := httptest.NewServer(feed)
	defer srv.Close()

	dialFeed(t, srv, "")
	dialFeed(t, srv, "")
	waitCount(t, feed, 2)

	feed.Close()
	waitCount(t, feed, 0)
}
