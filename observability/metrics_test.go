package observability

import (
	"testing"
	"time"

	"github.com/XiangYd616/runq/event"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// With no MeterProvider configured the instruments are noops, so these
// tests exercise the listener's handling of each event shape rather
// than exported values.

func sampleJob() *job.Job {
	queued := time.Now().Add(-time.Minute)
	started := queued.Add(10 * time.Second)
	finished := started.Add(30 * time.Second)
	return &job.Job{
		ID:            id.NewRunID(),
		CorrelationID: "test-1",
		Class:         job.ClassStress,
		Priority:      job.PriorityHigh,
		QueuedAt:      queued,
		StartedAt:     &started,
		FinishedAt:    &finished,
	}
}

func TestListenerHandlesAllEventTypes(t *testing.T) {
	l := NewMetrics().Listener()

	types := []event.Type{
		event.TypeQueued, event.TypeStarted, event.TypeProgress,
		event.TypeCompleted, event.TypeFailed, event.TypeRetrying,
		event.TypeCancelled,
	}
	for _, et := range types {
		l(event.Event{Type: et, Job: sampleJob(), Timestamp: time.Now()})
	}

	// Partially populated jobs must not panic the listener.
	l(event.Event{Type: event.TypeCompleted, Job: &job.Job{}})
	l(event.Event{Type: event.TypeStarted, Job: &job.Job{}})
	l(event.Event{Type: event.TypeQueued})
}

func TestBindDetach(t *testing.T) {
	bus := event.NewBus()
	detach := NewMetrics().Bind(bus)
	bus.Publish(event.Event{Type: event.TypeQueued, Job: sampleJob()})
	detach()
	bus.Publish(event.Event{Type: event.TypeQueued, Job: sampleJob()})
	if bus.Published() != 2 {
		t.Fatalf("published = %d, want 2", bus.Published())
	}
}
