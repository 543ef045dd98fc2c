package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/api"
	"github.com/XiangYd616/runq/engine"
	"github.com/XiangYd616/runq/event"
	"github.com/XiangYd616/runq/executor"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/stream"
)

type idleExecutor struct{}

func (idleExecutor) Start(context.Context, id.RunID, string, json.RawMessage) error {
	return nil
}

func (idleExecutor) Poll(context.Context, string) (executor.Report, error) {
	return executor.Report{Status: executor.StatusRunning}, nil
}

func newServerAndClient(t *testing.T) (*Client, *engine.Manager) {
	t.Helper()
	cfg := runq.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond

	eng, err := engine.New(idleExecutor{}, engine.WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	feed := stream.NewFeed(eng.Bus())
	srv := httptest.NewServer(api.New(eng, api.WithFeed(feed)).Handler())
	t.Cleanup(func() {
		srv.Close()
		feed.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})
	return New(srv.URL), eng
}

func TestEnqueueGetCancel(t *testing.T) {
	c, _ := newServerAndClient(t)
	ctx := context.Background()

	j, err := c.Enqueue(ctx, EnqueueRequest{CorrelationID: "cli-1", Class: "regular", Priority: "high"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.CorrelationID != "cli-1" {
		t.Errorf("correlation id = %q", j.CorrelationID)
	}

	got, err := c.Get(ctx, j.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID.String() != j.ID.String() {
		t.Errorf("Get returned different job: %s", got.ID)
	}

	if err := c.Cancel(ctx, j.ID.String(), "test"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// Cancelling again hits a terminal job.
	err = c.Cancel(ctx, j.ID.String(), "test")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
		t.Fatalf("second cancel err = %v, want 409 APIError", err)
	}
}

func TestStatsAndPosition(t *testing.T) {
	c, _ := newServerAndClient(t)
	ctx := context.Background()

	j, err := c.Enqueue(ctx, EnqueueRequest{CorrelationID: "cli-2"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := c.QueuePosition(ctx, j.ID.String()); err != nil {
		t.Fatalf("QueuePosition: %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Queued+stats.Running != 1 {
		t.Errorf("queued+running = %d, want 1", stats.Queued+stats.Running)
	}
}

func TestWatch(t *testing.T) {
	c, _ := newServerAndClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Watch(ctx, "queued", "started")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if _, err := c.Enqueue(ctx, EnqueueRequest{CorrelationID: "watched"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case evt, ok := <-events:
		if !ok {
			t.Fatal("event channel closed early")
		}
		if evt.Type != event.TypeQueued && evt.Type != event.TypeStarted {
			t.Errorf("event type = %s", evt.Type)
		}
		if evt.Job == nil || evt.Job.CorrelationID != "watched" {
			t.Errorf("event job = %+v", evt.Job)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event within 3s")
	}
}
