// Package resource derives the queue's resource status from periodic
// system snapshots.
//
// How a snapshot is physically measured is the sampler's business; the
// monitor only evaluates thresholds (most severe first) and publishes
// one of four status levels. Absence of monitoring fails open: a queue
// with no sampler, no snapshot yet, or a stale snapshot reports
// StatusHealthy, so monitoring can never become a single point of total
// denial.
package resource
