// Package track owns the authoritative job-id → state map and the
// retry and terminal bookkeeping around it.
//
// A job lives in exactly one collection at any time: the active map
// (queued or running) or one of the bounded terminal logs. Correlation
// ids are unique across the active map only; terminal jobs may reuse
// them. The tracker validates every state transition.
//
// Like the pending queue, the tracker is not safe for concurrent use;
// the engine's run loop is its single owner.
package track
