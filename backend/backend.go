// Package backend defines the coordination interface every metro storage
// realization implements: queueing, delayed scheduling, batch accumulation,
// distributed locking, and per-task status.
//
// The Backend is the single source of truth shared by all worker processes.
// Implementations must be safe for concurrent use from multiple goroutines
// and multiple OS processes.
package backend

import (
	"context"
	"time"

	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// Backend abstracts the persistent queueing medium. The reference
// implementation is Redis; in-process and database-backed implementations
// satisfy the same contract.
type Backend interface {
	// EnqueueJob appends t to the tail of the named queue's pending list
	// for immediate dequeue. It must not silently drop tasks; it returns
	// an error on unrecoverable I/O failure.
	EnqueueJob(ctx context.Context, queue string, t *task.Task) error

	// ScheduleJob records t for promotion into queue once now+delay has
	// elapsed.
	ScheduleJob(ctx context.Context, delay time.Duration, queue string, t *task.Task) error

	// RemoveScheduledJob cancels a previously scheduled task if it has
	// not yet been promoted. It is a no-op if the task is already
	// promoted or absent.
	RemoveScheduledJob(ctx context.Context, taskID id.TaskID, queue string) error

	// GetDueJobs returns all scheduled tasks for queue whose run time has
	// arrived, without removing them. Removal is a separate explicit step
	// so promotion can be retried if the enqueue step fails.
	GetDueJobs(ctx context.Context, queue string) ([]*task.Task, error)

	// DequeueJob atomically removes and returns the oldest pending task
	// for queue. An empty queue yields (nil, nil), never an error.
	DequeueJob(ctx context.Context, queue string) (*task.Task, error)

	// AddToBatch appends t to the named batch accumulator, preserving
	// insertion order.
	AddToBatch(ctx context.Context, batch string, t *task.Task) error

	// GetBatchSize returns the number of tasks accumulated in batch.
	GetBatchSize(ctx context.Context, batch string) (int, error)

	// GetBatch returns all tasks accumulated in batch, in insertion order.
	GetBatch(ctx context.Context, batch string) ([]*task.Task, error)

	// ClearBatch removes the batch accumulator and its start time.
	ClearBatch(ctx context.Context, batch string) error

	// SetBatchStartTime records when the first task entered batch.
	SetBatchStartTime(ctx context.Context, batch string, start time.Time) error

	// GetBatchStartTime returns the batch's start time, or the zero time
	// when none is set.
	GetBatchStartTime(ctx context.Context, batch string) (time.Time, error)

	// AcquireLock attempts to take the named distributed lock, retrying
	// until wait elapses. The lock's TTL equals wait. On success it
	// returns an opaque token and acquired=true; contention is reported
	// via acquired=false, not an error.
	AcquireLock(ctx context.Context, name string, wait time.Duration) (token string, acquired bool, err error)

	// ReleaseLock releases the named lock if and only if token matches
	// the one the lock currently holds. A stale token yields
	// metro.ErrLockNotHeld and leaves the lock in place.
	ReleaseLock(ctx context.Context, name string, token string) error

	// SetTaskStatus writes the status record for a task. errMsg is
	// recorded only for failed tasks.
	SetTaskStatus(ctx context.Context, taskID id.TaskID, state task.State, errMsg string) error

	// GetTaskStatus returns the status record for a task, or
	// metro.ErrStatusNotFound.
	GetTaskStatus(ctx context.Context, taskID id.TaskID) (*task.Status, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend handle.
	Close() error
}
