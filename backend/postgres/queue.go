package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// EnqueueJob appends the task to the tail of the queue. The BIGSERIAL seq
// column provides the FIFO order.
func (s *Store) EnqueueJob(ctx context.Context, queue string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/postgres: marshal task: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO metro_queue (queue, payload) VALUES ($1, $2)`,
		queue, payload,
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: enqueue job: %w", err)
	}
	return nil
}

// DequeueJob atomically claims and removes the oldest pending task for the
// queue. FOR UPDATE SKIP LOCKED keeps concurrent workers from claiming the
// same row. An empty queue yields (nil, nil).
func (s *Store) DequeueJob(ctx context.Context, queue string) (*task.Task, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		DELETE FROM metro_queue
		WHERE seq = (
			SELECT seq FROM metro_queue
			WHERE queue = $1
			ORDER BY seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING payload`,
		queue,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("metro/postgres: dequeue job: %w", err)
	}

	var t task.Task
	if uErr := json.Unmarshal(payload, &t); uErr != nil {
		s.logger.Error("dropping malformed task payload",
			slog.String("queue", queue),
			slog.String("error", uErr.Error()),
		)
		return nil, nil
	}
	return &t, nil
}

// ScheduleJob records the task for promotion once now+delay has elapsed.
func (s *Store) ScheduleJob(ctx context.Context, delay time.Duration, queue string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/postgres: marshal task: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO metro_scheduled (task_id, queue, run_at, payload)
		VALUES ($1, $2, $3, $4)`,
		t.ID.String(), queue, time.Now().UTC().Add(delay), payload,
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: schedule job: %w", err)
	}
	return nil
}

// GetDueJobs returns scheduled tasks whose run time has arrived, in due
// order, without removing them.
func (s *Store) GetDueJobs(ctx context.Context, queue string) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM metro_scheduled
		WHERE queue = $1 AND run_at <= NOW()
		ORDER BY run_at`,
		queue,
	)
	if err != nil {
		return nil, fmt.Errorf("metro/postgres: get due jobs: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var payload []byte
		if sErr := rows.Scan(&payload); sErr != nil {
			return nil, fmt.Errorf("metro/postgres: scan due job: %w", sErr)
		}
		var t task.Task
		if uErr := json.Unmarshal(payload, &t); uErr != nil {
			s.logger.Error("skipping malformed scheduled payload",
				slog.String("queue", queue),
				slog.String("error", uErr.Error()),
			)
			continue
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metro/postgres: get due jobs: %w", err)
	}
	return tasks, nil
}

// RemoveScheduledJob deletes the scheduled task by ID; a no-op when absent.
func (s *Store) RemoveScheduledJob(ctx context.Context, taskID id.TaskID, queue string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM metro_scheduled WHERE queue = $1 AND task_id = $2`,
		queue, taskID.String(),
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: remove scheduled job: %w", err)
	}
	return nil
}
