// Package record defines the persistence contract for test records —
// the externally owned documents a queued job correlates with.
//
// The engine writes status updates here best-effort: a store failure is
// logged but never allowed to diverge a job's in-memory lifecycle from
// the queue's own state. Backends live in subpackages (memory, redis,
// bun); all implement the same Store interface.
package record
