package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ricardo-agz/metro/job"
	"github.com/ricardo-agz/metro/task"
)

// batchLockName returns the distributed lock name serializing flushes of
// one class's batch across worker processes.
func batchLockName(class string) string { return "batch:" + class }

// maybeFlush checks the class's batch triggers against the backend's
// authoritative accumulator state and flushes when either fires.
func (w *Worker) maybeFlush(ctx context.Context, typ *job.Type) error {
	size, err := w.backend.GetBatchSize(ctx, typ.Name)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	if typ.BatchSize > 0 && size >= typ.BatchSize {
		return w.flush(ctx, typ)
	}

	if typ.BatchInterval > 0 {
		start, err := w.backend.GetBatchStartTime(ctx, typ.Name)
		if err != nil {
			return err
		}
		if !start.IsZero() && time.Since(start) >= typ.BatchInterval {
			return w.flush(ctx, typ)
		}
	}
	return nil
}

// flush executes the class's accumulated batch under the class's
// distributed lock. When the lock is contended the batch is simply left
// for a later pass — another worker process presumably holds it. Under
// the lock the accumulator is re-read from the backend and the triggers
// re-checked, because the local view may be stale by the time the lock is
// granted.
func (w *Worker) flush(ctx context.Context, typ *job.Type) error {
	lockName := batchLockName(typ.Name)
	token, acquired, err := w.backend.AcquireLock(ctx, lockName, w.cfg.LockWait)
	if err != nil {
		return err
	}
	if !acquired {
		w.logger.Debug("batch lock contended, leaving batch for a later pass",
			slog.String("class", typ.Name),
		)
		return nil
	}
	// Release with a detached context so the lock is freed even when the
	// flush (or shutdown) interrupted the caller's context.
	defer func() {
		if rErr := w.backend.ReleaseLock(context.Background(), lockName, token); rErr != nil {
			w.logger.Warn("failed to release batch lock",
				slog.String("class", typ.Name),
				slog.String("error", rErr.Error()),
			)
		}
	}()

	tasks, err := w.backend.GetBatch(ctx, typ.Name)
	if err != nil {
		return err
	}
	start, err := w.backend.GetBatchStartTime(ctx, typ.Name)
	if err != nil {
		return err
	}

	sizeDue := typ.BatchSize > 0 && len(tasks) >= typ.BatchSize
	ageDue := typ.BatchInterval > 0 && !start.IsZero() && time.Since(start) >= typ.BatchInterval
	if len(tasks) == 0 || (!sizeDue && !ageDue) {
		return nil
	}

	w.executeBatch(typ, tasks)

	if err := w.backend.ClearBatch(ctx, typ.Name); err != nil {
		return err
	}
	w.metrics.BatchFlushed(ctx, typ.Name, len(tasks))
	return nil
}

// executeBatch runs the hook-wrapped batch handler over tasks, moving
// every contained task running → completed/failed together. Batch hooks
// run once per flush, not once per task.
func (w *Worker) executeBatch(typ *job.Type, tasks []*task.Task) {
	ctx := context.Background()

	w.setBatchStatus(ctx, tasks, task.StateRunning, "")

	start := time.Now()
	err := w.performBatch(ctx, typ, tasks)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "unknown error"
		}
		w.setBatchStatus(ctx, tasks, task.StateFailed, msg)
		for range tasks {
			w.metrics.TaskFailed(ctx, typ.Queue, typ.Name)
		}
		w.logger.Error("batch failed",
			slog.String("class", typ.Name),
			slog.Int("size", len(tasks)),
			slog.String("error", msg),
		)
		return
	}

	w.setBatchStatus(ctx, tasks, task.StateCompleted, "")
	for range tasks {
		w.metrics.TaskCompleted(ctx, typ.Queue, typ.Name, elapsed)
	}
	w.logger.Info("batch completed",
		slog.String("class", typ.Name),
		slog.Int("size", len(tasks)),
		slog.Duration("elapsed", elapsed),
	)
}

// performBatch runs the batch hooks and handler with panic recovery.
func (w *Worker) performBatch(ctx context.Context, typ *job.Type, tasks []*task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for _, h := range typ.BeforePerformBatch {
		if err := h(ctx, tasks); err != nil {
			return err
		}
	}
	if err := typ.PerformBatch(ctx, tasks); err != nil {
		return err
	}
	for _, h := range typ.AfterPerformBatch {
		if err := h(ctx, tasks); err != nil {
			return err
		}
	}
	return nil
}

// setBatchStatus applies one status transition to every task in the batch.
func (w *Worker) setBatchStatus(ctx context.Context, tasks []*task.Task, state task.State, msg string) {
	for _, t := range tasks {
		if err := w.backend.SetTaskStatus(ctx, t.ID, state, msg); err != nil {
			w.logger.Error("failed to set batch task status",
				slog.String("task_id", t.ID.String()),
				slog.String("status", string(state)),
				slog.String("error", err.Error()),
			)
		}
	}
}
