package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ricardo-agz/metro/job"
	"github.com/ricardo-agz/metro/task"
)

// executeTask runs one non-batchable task through its hooks and handler,
// transitioning its status running → completed/failed. Execution uses a
// detached context so an in-flight task finishes even during shutdown.
func (w *Worker) executeTask(typ *job.Type, t *task.Task) {
	ctx := context.Background()

	if err := w.backend.SetTaskStatus(ctx, t.ID, task.StateRunning, ""); err != nil {
		w.logger.Error("failed to mark task running",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	start := time.Now()
	err := w.perform(ctx, typ, t)
	elapsed := time.Since(start)

	if err != nil {
		w.failTask(ctx, t, err)
		w.metrics.TaskFailed(ctx, typ.Queue, typ.Name)
		return
	}

	if sErr := w.backend.SetTaskStatus(ctx, t.ID, task.StateCompleted, ""); sErr != nil {
		w.logger.Error("failed to mark task completed",
			slog.String("task_id", t.ID.String()),
			slog.String("error", sErr.Error()),
		)
	}
	w.metrics.TaskCompleted(ctx, typ.Queue, typ.Name, elapsed)
	w.logger.Info("task completed",
		slog.String("task_id", t.ID.String()),
		slog.String("class", typ.Name),
		slog.Duration("elapsed", elapsed),
	)
}

// perform runs the before hooks, the handler, and the after hooks, in
// registration order. A panic from any of them is recovered and reported
// as the task's failure.
func (w *Worker) perform(ctx context.Context, typ *job.Type, t *task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for _, h := range typ.BeforePerform {
		if err := h(ctx, t); err != nil {
			return err
		}
	}
	if err := typ.Perform(ctx, t.Args, t.Kwargs); err != nil {
		return err
	}
	for _, h := range typ.AfterPerform {
		if err := h(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// failTask records the failed status with the execution error. A failed
// task stays failed — re-enqueueing is the caller's decision.
func (w *Worker) failTask(ctx context.Context, t *task.Task, execErr error) {
	msg := execErr.Error()
	if msg == "" {
		msg = "unknown error"
	}
	if err := w.backend.SetTaskStatus(ctx, t.ID, task.StateFailed, msg); err != nil {
		w.logger.Error("failed to mark task failed",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	w.logger.Error("task failed",
		slog.String("task_id", t.ID.String()),
		slog.String("class", t.Class),
		slog.String("error", msg),
	)
}
