// Package runq implements the test-execution queue for the Web-Test
// platform: admission control, priority scheduling, retry and timeout
// policy for requested test runs.
//
// Runq is a library, not a service. The API that actually executes a
// test and the storage of test records are external collaborators
// reached through small interfaces (executor.Executor, record.Store);
// runq owns only the decision of which test runs now, which waits, in
// what order, and when to give up.
//
// # Quick Start
//
//	mgr, err := engine.New(execClient,
//	    engine.WithConfig(runq.DefaultConfig()),
//	    engine.WithRecordStore(records),
//	)
//	mgr.Start(ctx)
//	defer mgr.Stop(ctx)
//
//	jobID, err := mgr.Enqueue(ctx, job.Spec{
//	    CorrelationID: testID,
//	    Class:         job.ClassStress,
//	    Priority:      job.PriorityHigh,
//	})
//
// # Architecture
//
// A single run-loop goroutine owns all queue state. Public methods are
// messages into that loop; per-running-job pollers report terminal
// outcomes back over a channel. Admission is gated per job class
// (regular vs stress) and by the derived resource status from
// resource.Monitor.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package runq
