package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ricardo-agz/metro/task"
)

// promotionLoop periodically moves due scheduled tasks into their queues.
// One loop serves every queue, iterating them in turn. Errors are logged
// and retried after a longer backoff rather than terminating the loop.
func (w *Worker) promotionLoop(ctx context.Context, queues []string) {
	w.logger.Info("promotion loop started", slog.Any("queues", queues))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.promoteDue(ctx, queues); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("promotion error", slog.String("error", err.Error()))
			w.sleep(ctx, w.cfg.PromotionBackoff)
			continue
		}
		w.sleep(ctx, w.cfg.PromotionInterval)
	}
}

// promoteDue promotes every due scheduled task: enqueue first, then remove
// from the scheduled store, then mark queued. Removal happens only after
// the enqueue so a crash mid-promotion leaves the task re-promotable —
// at-least-once delivery, never silent loss. The cost is a possible
// duplicate enqueue after a crash between the two steps.
func (w *Worker) promoteDue(ctx context.Context, queues []string) error {
	for _, queue := range queues {
		due, err := w.backend.GetDueJobs(ctx, queue)
		if err != nil {
			return err
		}

		for _, t := range due {
			t.Status = task.StateQueued
			if err := w.backend.EnqueueJob(ctx, queue, t); err != nil {
				return err
			}
			if err := w.backend.RemoveScheduledJob(ctx, t.ID, queue); err != nil {
				return err
			}
			if err := w.backend.SetTaskStatus(ctx, t.ID, task.StateQueued, ""); err != nil {
				return err
			}

			w.metrics.TaskPromoted(ctx, queue)
			w.logger.Debug("promoted scheduled task",
				slog.String("task_id", t.ID.String()),
				slog.String("queue", queue),
			)
		}
	}
	return nil
}
