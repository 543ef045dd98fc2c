package event

import (
	"sync"
	"testing"
	"time"

	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

func testEvent(typ Type) Event {
	return Event{
		Type: typ,
		Job:  &job.Job{ID: id.NewRunID(), State: job.StateQueued},
	}
}

func TestBus_AddListener_Unsubscribe(t *testing.T) {
	b := NewBus()

	var got []Type
	unsub := b.AddListener(func(e Event) { got = append(got, e.Type) })

	b.Publish(testEvent(TypeQueued))
	b.Publish(testEvent(TypeStarted))
	unsub()
	b.Publish(testEvent(TypeCompleted))

	if len(got) != 2 || got[0] != TypeQueued || got[1] != TypeStarted {
		t.Errorf("listener saw %v, want [queued started]", got)
	}
}

func TestBus_ListenerPanic_Isolated(t *testing.T) {
	b := NewBus()

	b.AddListener(func(Event) { panic("listener bug") })
	var survived bool
	b.AddListener(func(Event) { survived = true })

	b.Publish(testEvent(TypeQueued)) // must not panic the caller

	if !survived {
		t.Error("panic in one listener starved the others")
	}
}

func TestBus_Publish_StampsTimestamp(t *testing.T) {
	b := NewBus()
	var ts time.Time
	b.AddListener(func(e Event) { ts = e.Timestamp })
	b.Publish(testEvent(TypeQueued))
	if ts.IsZero() {
		t.Error("Publish should stamp a zero timestamp")
	}
}

func TestBus_Subscriber_ReceivesEvents(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(testEvent(TypeQueued))

	select {
	case e := <-sub.C():
		if e.Type != TypeQueued {
			t.Errorf("received %q, want queued", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_Subscriber_DropOnFullBuffer(t *testing.T) {
	b := NewBus(WithBufferSize(1))
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(testEvent(TypeQueued))
	b.Publish(testEvent(TypeStarted)) // buffer full, dropped

	if b.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", b.Dropped())
	}
	if b.Published() != 2 {
		t.Errorf("Published = %d, want 2", b.Published())
	}
}

func TestBus_Subscriber_CloseIsIdempotent(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	sub.Close()
	sub.Close() // must not panic

	// Publishing after close must not panic either.
	b.Publish(testEvent(TypeQueued))

	if _, open := <-sub.C(); open {
		t.Error("channel should be closed")
	}
}

func TestBus_ConcurrentPublishAndClose(t *testing.T) {
	b := NewBus(WithBufferSize(4))

	var wg sync.WaitGroup
	for range 8 {
		sub := b.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b.Publish(testEvent(TypeProgress))
			}
		}()
	}
	wg.Wait()
}
