// Package queue provides the pending-job priority queue.
//
// Ordering is by configured priority weight (higher first) with stable
// insertion order among equal weights. Insertion is an O(n) scan to
// position, which is fine at the configured queue sizes (a few hundred
// jobs at most). The queue is not safe for concurrent use; the engine's
// run loop is its single owner.
package queue
