package queue

import (
	"testing"

	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

func weigher() Weigher {
	w := job.DefaultWeights()
	return func(p job.Priority) int { return w[p] }
}

func mkJob(corr string, p job.Priority) *job.Job {
	return &job.Job{
		ID:            id.NewRunID(),
		CorrelationID: corr,
		Priority:      p,
		State:         job.StateQueued,
	}
}

// ---------------------------------------------------------------------------
// Ordering
// ---------------------------------------------------------------------------

func TestQueue_PriorityOrder(t *testing.T) {
	q := New(weigher())

	// Enqueued [low, high, normal, high] must dequeue [high, high, normal, low],
	// ties broken by insertion order.
	a := mkJob("a", job.PriorityLow)
	b := mkJob("b", job.PriorityHigh)
	c := mkJob("c", job.PriorityNormal)
	d := mkJob("d", job.PriorityHigh)
	for _, j := range []*job.Job{a, b, c, d} {
		q.Insert(j)
	}

	want := []string{"b", "d", "c", "a"}
	for i, corr := range want {
		j := q.Pop()
		if j == nil {
			t.Fatalf("Pop %d returned nil", i)
		}
		if j.CorrelationID != corr {
			t.Errorf("Pop %d = %q, want %q", i, j.CorrelationID, corr)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after draining, want 0", q.Len())
	}
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	q := New(weigher())
	for _, corr := range []string{"first", "second", "third"} {
		q.Insert(mkJob(corr, job.PriorityNormal))
	}
	for _, want := range []string{"first", "second", "third"} {
		if got := q.Pop().CorrelationID; got != want {
			t.Errorf("Pop = %q, want %q", got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Peek / Pop / empty behaviour
// ---------------------------------------------------------------------------

func TestQueue_PeekDoesNotRemove(t *testing.T) {
	q := New(weigher())
	q.Insert(mkJob("only", job.PriorityNormal))

	if q.Peek().CorrelationID != "only" {
		t.Fatal("Peek returned wrong job")
	}
	if q.Len() != 1 {
		t.Errorf("Peek removed the job; Len = %d", q.Len())
	}
}

func TestQueue_Empty(t *testing.T) {
	q := New(weigher())
	if q.Peek() != nil {
		t.Error("Peek on empty queue should return nil")
	}
	if q.Pop() != nil {
		t.Error("Pop on empty queue should return nil")
	}
	if q.PositionOf(id.NewRunID()) != -1 {
		t.Error("PositionOf unknown id should be -1")
	}
}

// ---------------------------------------------------------------------------
// RemoveByID / positions / correlation tracking
// ---------------------------------------------------------------------------

func TestQueue_RemoveByID(t *testing.T) {
	q := New(weigher())
	a := mkJob("a", job.PriorityNormal)
	b := mkJob("b", job.PriorityNormal)
	c := mkJob("c", job.PriorityNormal)
	for _, j := range []*job.Job{a, b, c} {
		q.Insert(j)
	}

	removed := q.RemoveByID(b.ID)
	if removed == nil || removed.CorrelationID != "b" {
		t.Fatalf("RemoveByID returned %v", removed)
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
	if q.ContainsCorrelation("b") {
		t.Error("correlation id still tracked after removal")
	}
	if q.RemoveByID(b.ID) != nil {
		t.Error("second RemoveByID should return nil")
	}
	// Order preserved for the survivors.
	if q.Pop().CorrelationID != "a" || q.Pop().CorrelationID != "c" {
		t.Error("removal disturbed ordering")
	}
}

func TestQueue_PositionOf(t *testing.T) {
	q := New(weigher())
	low := mkJob("low", job.PriorityLow)
	high := mkJob("high", job.PriorityHigh)
	q.Insert(low)
	q.Insert(high)

	if got := q.PositionOf(high.ID); got != 0 {
		t.Errorf("PositionOf(high) = %d, want 0", got)
	}
	if got := q.PositionOf(low.ID); got != 1 {
		t.Errorf("PositionOf(low) = %d, want 1", got)
	}
}

func TestQueue_ContainsCorrelation(t *testing.T) {
	q := New(weigher())
	q.Insert(mkJob("tracked", job.PriorityNormal))

	if !q.ContainsCorrelation("tracked") {
		t.Error("ContainsCorrelation should see pending job")
	}
	q.Pop()
	if q.ContainsCorrelation("tracked") {
		t.Error("ContainsCorrelation should clear after Pop")
	}
}

func TestQueue_JobsSnapshot(t *testing.T) {
	q := New(weigher())
	q.Insert(mkJob("a", job.PriorityNormal))
	q.Insert(mkJob("b", job.PriorityHigh))

	jobs := q.Jobs()
	if len(jobs) != 2 || jobs[0].CorrelationID != "b" {
		t.Fatalf("Jobs() = %v", jobs)
	}
	// Mutating the snapshot slice must not affect the queue.
	jobs[0] = nil
	if q.Peek().CorrelationID != "b" {
		t.Error("Jobs() returned the internal slice")
	}
}
