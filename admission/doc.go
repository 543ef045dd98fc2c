// Package admission gates the move of a job from pending to running.
//
// Each job class (regular, stress) has its own concurrency pool and an
// optional token-bucket admission rate limit. Stress jobs additionally
// require the resource status to be below critical; they tolerate
// warning. Stress tests get the larger, more resource-tolerant pool,
// while regular tests are never resource-gated at all.
//
// The fast-track path and the processing tick share the same CanStart
// implementation, so "admit at enqueue" and "admit on the next tick"
// cannot diverge.
package admission
