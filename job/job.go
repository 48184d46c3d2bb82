// Package job defines job classes — named units of work with a queue,
// optional batch parameters, and lifecycle hooks — plus the registry that
// resolves a dequeued task's class name back to executable code and the
// Client used to enqueue work.
package job

import (
	"context"
	"time"

	"github.com/ricardo-agz/metro/task"
)

// PerformFunc executes one task. args and kwargs are the values the task
// was enqueued with.
type PerformFunc func(ctx context.Context, args []any, kwargs map[string]any) error

// PerformBatchFunc executes an accumulated batch of tasks together, in
// insertion order.
type PerformBatchFunc func(ctx context.Context, tasks []*task.Task) error

// Hook runs around a single-task execution. A hook error fails the task.
type Hook func(ctx context.Context, t *task.Task) error

// BatchHook runs once around a batch execution — not once per task.
// A hook error fails every task in the batch.
type BatchHook func(ctx context.Context, tasks []*task.Task) error

// Type describes a job class: its queue, batch configuration, handler, and
// hooks. Build one with New and functional options, then register it.
//
// A Type is batchable iff BatchSize or BatchInterval is set. Batchable
// classes must provide PerformBatch and must not provide Perform;
// non-batchable classes the reverse. The registry enforces this at
// registration time.
type Type struct {
	// Name identifies the class; it is the task wire format's "class"
	// field and the batch accumulator key.
	Name string

	// Queue is the logical queue name. Defaults to "default".
	Queue string

	// BatchSize flushes the class's batch once this many tasks have
	// accumulated. Zero disables the size trigger.
	BatchSize int

	// BatchInterval flushes the class's batch once this much time has
	// passed since its first task arrived, even below BatchSize.
	// Zero disables the interval trigger.
	BatchInterval time.Duration

	// Perform is the single-task handler (non-batchable classes only).
	Perform PerformFunc

	// PerformBatch is the batch handler (batchable classes only).
	PerformBatch PerformBatchFunc

	// Hooks, invoked in registration order.
	BeforePerform      []Hook
	AfterPerform       []Hook
	BeforePerformBatch []BatchHook
	AfterPerformBatch  []BatchHook
}

// New builds a job Type with the given name and options.
func New(name string, opts ...Option) *Type {
	t := &Type{
		Name:  name,
		Queue: "default",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Batchable reports whether this class accumulates tasks for combined
// execution.
func (t *Type) Batchable() bool {
	return t.BatchSize > 0 || t.BatchInterval > 0
}
