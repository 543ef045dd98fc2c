package queue

import (
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// Weigher maps a job priority to its integer weight.
type Weigher func(job.Priority) int

// PendingQueue is an ordered collection of jobs waiting for admission.
type PendingQueue struct {
	items  []*job.Job
	weigh  Weigher
	byCorr map[string]*job.Job
}

// New creates an empty queue using the given weigher.
func New(weigh Weigher) *PendingQueue {
	return &PendingQueue{
		weigh:  weigh,
		byCorr: make(map[string]*job.Job),
	}
}

// Len returns the number of pending jobs.
func (q *PendingQueue) Len() int { return len(q.items) }

// Insert places j after the last job of equal or higher weight, so that
// equal-priority jobs dequeue in insertion order.
func (q *PendingQueue) Insert(j *job.Job) {
	w := q.weigh(j.Priority)

	pos := len(q.items)
	for i, existing := range q.items {
		if q.weigh(existing.Priority) < w {
			pos = i
			break
		}
	}

	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = j
	q.byCorr[j.CorrelationID] = j
}

// Peek returns the head of the queue without removing it, or nil if the
// queue is empty.
func (q *PendingQueue) Peek() *job.Job {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head of the queue, or nil if empty.
func (q *PendingQueue) Pop() *job.Job {
	if len(q.items) == 0 {
		return nil
	}
	j := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	delete(q.byCorr, j.CorrelationID)
	return j
}

// RemoveByID removes the pending job with the given id, returning it,
// or nil if no such job is pending.
func (q *PendingQueue) RemoveByID(jobID id.RunID) *job.Job {
	for i, j := range q.items {
		if j.ID.String() == jobID.String() {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			delete(q.byCorr, j.CorrelationID)
			return j
		}
	}
	return nil
}

// PositionOf returns the zero-based queue position of the job, or -1 if
// it is not pending.
func (q *PendingQueue) PositionOf(jobID id.RunID) int {
	for i, j := range q.items {
		if j.ID.String() == jobID.String() {
			return i
		}
	}
	return -1
}

// ContainsCorrelation reports whether a pending job carries the given
// correlation id.
func (q *PendingQueue) ContainsCorrelation(correlationID string) bool {
	_, ok := q.byCorr[correlationID]
	return ok
}

// Jobs returns the pending jobs in dequeue order. The returned slice is
// a copy; the jobs are not.
func (q *PendingQueue) Jobs() []*job.Job {
	out := make([]*job.Job, len(q.items))
	copy(out, q.items)
	return out
}
