// Package metro provides a background job queue and worker runtime over a
// shared coordination backend. It offers immediate, delayed, and batched job
// execution, per-job status tracking, and distributed mutual exclusion across
// worker processes.
//
// Metro is designed as a library, not a service. Import it, configure a
// backend, register job types, and run a Worker.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	err := reg.Register(job.New("send-email",
//	    job.WithQueue("mailers"),
//	    job.WithPerform(func(ctx context.Context, args []any, kwargs map[string]any) error {
//	        return sendEmail(ctx, args[0].(string))
//	    }),
//	))
//
//	client := job.NewClient(backend, reg)
//	taskID, err := client.Enqueue(ctx, "send-email", []any{"alice@example.com"}, nil)
//
//	w := worker.New(backend, reg)
//	err = w.Run(ctx) // blocks until ctx is cancelled
//
// # Architecture
//
// All queueing, scheduling, batching, locking, and status state lives in a
// Backend — the single source of truth shared by every worker process. The
// reference Backend is Redis; in-process and PostgreSQL backends implement
// the same interface. The Worker runs one processing loop per distinct queue
// plus one promotion loop that moves due scheduled tasks into their queues.
//
// Task IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based identifiers.
package metro
