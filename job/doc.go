// Package job defines the queued test run — its class, priority,
// lifecycle state, and the caller-facing Spec used to request one.
//
// A Job is created by the engine at enqueue time and mutated only by the
// engine's run loop. Callers hold the job ID and observe progress through
// the event bus, never through shared Job pointers.
package job
