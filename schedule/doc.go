// Package schedule runs recurring test executions. An Entry pairs a
// cron expression with a job spec template; on each due tick the
// scheduler enqueues a fresh job with a unique correlation id derived
// from the template.
//
// The scheduler is deliberately single-node: it assumes one queue
// engine per process and does no distributed locking.
package schedule
