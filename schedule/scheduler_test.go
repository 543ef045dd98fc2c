package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

type captureEnqueue struct {
	mu    sync.Mutex
	specs []job.Spec
	err   error
}

func (c *captureEnqueue) fn(_ context.Context, spec job.Spec) (id.RunID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return id.RunID{}, c.err
	}
	c.specs = append(c.specs, spec)
	return id.NewRunID(), nil
}

func (c *captureEnqueue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.specs)
}

func TestAddValidatesExpression(t *testing.T) {
	s := NewScheduler((&captureEnqueue{}).fn)

	if _, err := s.Add("bad", "not a cron", job.Spec{CorrelationID: "t"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := s.Add("noprefix", "@hourly", job.Spec{}); err == nil {
		t.Fatal("expected missing correlation prefix error")
	}
	if _, err := s.Add("ok", "*/5 * * * *", job.Spec{CorrelationID: "t"}); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if _, err := s.Add("ok", "@hourly", job.Spec{CorrelationID: "t"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestFiresAndRegeneratesCorrelation(t *testing.T) {
	sink := &captureEnqueue{}
	s := NewScheduler(sink.fn, WithTickInterval(5*time.Millisecond))

	if _, err := s.Add("perf-check", "@every 10ms", job.Spec{
		CorrelationID: "perf",
		Class:         job.ClassRegular,
		Priority:      job.PriorityLow,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() < 2 {
		t.Fatalf("fired %d times, want at least 2", sink.count())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	seen := map[string]bool{}
	for _, spec := range sink.specs {
		if !strings.HasPrefix(spec.CorrelationID, "perf-") {
			t.Errorf("correlation id %q missing template prefix", spec.CorrelationID)
		}
		if seen[spec.CorrelationID] {
			t.Errorf("correlation id %q reused across fires", spec.CorrelationID)
		}
		seen[spec.CorrelationID] = true
		if spec.Priority != job.PriorityLow {
			t.Errorf("priority not carried from template: %s", spec.Priority)
		}
	}
}

func TestDisabledEntryDoesNotFire(t *testing.T) {
	sink := &captureEnqueue{}
	s := NewScheduler(sink.fn, WithTickInterval(5*time.Millisecond))

	entryID, err := s.Add("paused", "@every 10ms", job.Spec{CorrelationID: "p"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.SetEnabled(entryID, false) {
		t.Fatal("SetEnabled returned false")
	}

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := sink.count(); n != 0 {
		t.Fatalf("disabled entry fired %d times", n)
	}
}

func TestFireFailureRecorded(t *testing.T) {
	sink := &captureEnqueue{err: runq.ErrQueueFull}
	s := NewScheduler(sink.fn, WithTickInterval(5*time.Millisecond))

	if _, err := s.Add("full", "@every 10ms", job.Spec{CorrelationID: "f"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries := s.List()
		if len(entries) == 1 && entries[0].LastError != "" {
			if entries[0].FireCount != 0 {
				t.Fatalf("fire count = %d after failures, want 0", entries[0].FireCount)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("enqueue failure never recorded")
}

func TestRemove(t *testing.T) {
	s := NewScheduler((&captureEnqueue{}).fn)

	entryID, err := s.Add("gone", "@daily", job.Spec{CorrelationID: "g"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Remove(entryID) {
		t.Fatal("Remove returned false")
	}
	if s.Remove(entryID) {
		t.Fatal("second Remove returned true")
	}
	// The name is free again.
	if _, err := s.Add("gone", "@daily", job.Spec{CorrelationID: "g"}); err != nil {
		t.Fatalf("re-Add after Remove: %v", err)
	}
}
