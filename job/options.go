package job

import "time"

// Option is a functional option for configuring a job Type.
type Option func(*Type)

// WithQueue sets the queue name for the class.
func WithQueue(q string) Option {
	return func(t *Type) { t.Queue = q }
}

// WithBatchSize sets the size trigger for the class's batch accumulator,
// making the class batchable.
func WithBatchSize(n int) Option {
	return func(t *Type) { t.BatchSize = n }
}

// WithBatchInterval sets the age trigger for the class's batch accumulator,
// making the class batchable.
func WithBatchInterval(d time.Duration) Option {
	return func(t *Type) { t.BatchInterval = d }
}

// WithPerform sets the single-task handler.
func WithPerform(fn PerformFunc) Option {
	return func(t *Type) { t.Perform = fn }
}

// WithPerformBatch sets the batch handler.
func WithPerformBatch(fn PerformBatchFunc) Option {
	return func(t *Type) { t.PerformBatch = fn }
}

// WithBeforePerform appends a hook that runs before every single-task
// execution. Hooks run in the order they were added.
func WithBeforePerform(h Hook) Option {
	return func(t *Type) { t.BeforePerform = append(t.BeforePerform, h) }
}

// WithAfterPerform appends a hook that runs after every successful
// single-task execution.
func WithAfterPerform(h Hook) Option {
	return func(t *Type) { t.AfterPerform = append(t.AfterPerform, h) }
}

// WithBeforePerformBatch appends a hook that runs once before every batch
// execution.
func WithBeforePerformBatch(h BatchHook) Option {
	return func(t *Type) { t.BeforePerformBatch = append(t.BeforePerformBatch, h) }
}

// WithAfterPerformBatch appends a hook that runs once after every
// successful batch execution.
func WithAfterPerformBatch(h BatchHook) Option {
	return func(t *Type) { t.AfterPerformBatch = append(t.AfterPerformBatch, h) }
}
