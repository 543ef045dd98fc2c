// Package engine wires all runq subsystems together: the pending
// queue, the admission controller, the job tracker, the resource
// monitor, the record store and the executor client.
//
// All queue state is owned by a single run-loop goroutine. Public
// operations (Enqueue, Cancel, Stats, ...) and per-job poll goroutines
// never touch the queue or tracker directly; they submit closures to
// the run loop and wait for the answer. This keeps the priority queue
// and the tracker free of locks and makes every state transition
// totally ordered.
package engine
