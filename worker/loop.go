package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ricardo-agz/metro/job"
	"github.com/ricardo-agz/metro/task"
)

// queueLoop is the processing loop for one queue. Each iteration dequeues
// at most one task, dispatches it, and then evaluates the batch triggers
// for every batchable class assigned to this queue. Backend errors never
// terminate the loop — they are logged and retried after a backoff.
func (w *Worker) queueLoop(ctx context.Context, queue string) {
	batchable := w.registry.Batchable(queue)
	w.logger.Info("processing queue",
		slog.String("queue", queue),
		slog.Int("batchable_classes", len(batchable)),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.iterate(ctx, queue, batchable); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("queue loop error",
				slog.String("queue", queue),
				slog.String("error", err.Error()),
			)
			w.sleep(ctx, w.cfg.ErrorBackoff)
		}
	}
}

// iterate performs one dequeue-dispatch-flush cycle.
func (w *Worker) iterate(ctx context.Context, queue string, batchable []*job.Type) error {
	t, err := w.backend.DequeueJob(ctx, queue)
	if err != nil {
		return err
	}

	if t != nil {
		w.dispatch(ctx, queue, t)
	} else {
		w.sleep(ctx, w.cfg.EmptySleep)
	}

	// Size triggers are evaluated after every dequeue attempt, interval
	// triggers on every pass, so a batch below size still flushes once
	// its interval lapses.
	for _, typ := range batchable {
		if err := w.maybeFlush(ctx, typ); err != nil {
			return err
		}
	}
	return nil
}

// dispatch routes a dequeued task: batchable classes accumulate, everything
// else executes immediately. A class name that does not resolve in the
// registry is logged and dropped — there is nothing to execute and no
// status transition that would be truthful.
func (w *Worker) dispatch(ctx context.Context, queue string, t *task.Task) {
	typ, ok := w.registry.Get(t.Class)
	if !ok {
		w.logger.Error("unknown job class, dropping task",
			slog.String("task_id", t.ID.String()),
			slog.String("class", t.Class),
			slog.String("queue", queue),
		)
		return
	}

	if typ.Batchable() {
		w.accumulate(ctx, typ, t)
		return
	}
	w.executeTask(typ, t)
}

// accumulate persists a dequeued batchable task into its class's batch
// store and records the batch start time on first insertion. The task is
// marked queued — accepted, not yet run.
func (w *Worker) accumulate(ctx context.Context, typ *job.Type, t *task.Task) {
	if err := w.backend.AddToBatch(ctx, typ.Name, t); err != nil {
		w.logger.Error("failed to add task to batch",
			slog.String("task_id", t.ID.String()),
			slog.String("class", typ.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	start, err := w.backend.GetBatchStartTime(ctx, typ.Name)
	if err == nil && start.IsZero() {
		err = w.backend.SetBatchStartTime(ctx, typ.Name, time.Now())
	}
	if err != nil {
		w.logger.Error("failed to track batch start time",
			slog.String("class", typ.Name),
			slog.String("error", err.Error()),
		)
	}

	if err := w.backend.SetTaskStatus(ctx, t.ID, task.StateQueued, ""); err != nil {
		w.logger.Error("failed to mark batch task queued",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Debug("accumulated batchable task",
		slog.String("task_id", t.ID.String()),
		slog.String("class", typ.Name),
	)
}
