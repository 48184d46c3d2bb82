// Package task defines the job task data model — the immutable payload
// describing one unit of queued work — and its status record.
package task

import (
	"time"

	"github.com/ricardo-agz/metro/id"
)

// State represents the lifecycle state of a task.
type State string

const (
	// StateQueued means the task is waiting in its queue for a worker.
	StateQueued State = "queued"
	// StateScheduled means the task is waiting for its due time before
	// being promoted into its queue.
	StateScheduled State = "scheduled"
	// StateBatchQueued means the task has been accepted into a batch
	// accumulator and will run when the batch flushes.
	StateBatchQueued State = "batch_queued"
	// StateRunning means a worker is currently executing the task.
	StateRunning State = "running"
	// StateCompleted means the task finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the task failed. Metro does not retry failed
	// tasks; re-enqueueing is the caller's responsibility.
	StateFailed State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Task is an immutable description of one unit of work. It is created once
// by the enqueuing call and read-only thereafter; only its status record is
// mutated, and exclusively by the Worker.
//
// The JSON field names are the wire format shared with other metro worker
// processes; they are a compatibility surface.
type Task struct {
	ID          id.TaskID      `json:"id"`
	Class       string         `json:"class"`
	Args        []any          `json:"args"`
	Kwargs      map[string]any `json:"kwargs"`
	EnqueueTime time.Time      `json:"enqueue_time"`
	Status      State          `json:"status"`
	Queue       string         `json:"queue"`
	RunAt       *time.Time     `json:"run_at,omitempty"`
}

// New builds a Task for the given job class with a fresh unique ID.
func New(class, queue string, status State, args []any, kwargs map[string]any) *Task {
	return &Task{
		ID:          id.NewTaskID(),
		Class:       class,
		Args:        args,
		Kwargs:      kwargs,
		EnqueueTime: time.Now().UTC(),
		Status:      status,
		Queue:       queue,
	}
}

// Status is the per-task status record, keyed by the task's ID. It is
// created at enqueue time, advances monotonically through the task state
// machine, and is never deleted by the core.
type Status struct {
	ID     id.TaskID `json:"id"`
	Status State     `json:"status"`
	Error  string    `json:"error,omitempty"`
}
