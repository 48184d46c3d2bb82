package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ricardo-agz/metro/task"
)

// AddToBatch appends the task to the batch accumulator in insertion order.
func (s *Store) AddToBatch(ctx context.Context, batch string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/postgres: marshal task: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO metro_batches (batch, payload) VALUES ($1, $2)`,
		batch, payload,
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: add to batch: %w", err)
	}
	return nil
}

// GetBatchSize returns the number of tasks accumulated in the batch.
func (s *Store) GetBatchSize(ctx context.Context, batch string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM metro_batches WHERE batch = $1`,
		batch,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("metro/postgres: get batch size: %w", err)
	}
	return n, nil
}

// GetBatch returns the accumulated tasks in insertion order.
func (s *Store) GetBatch(ctx context.Context, batch string) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM metro_batches WHERE batch = $1 ORDER BY seq`,
		batch,
	)
	if err != nil {
		return nil, fmt.Errorf("metro/postgres: get batch: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var payload []byte
		if sErr := rows.Scan(&payload); sErr != nil {
			return nil, fmt.Errorf("metro/postgres: scan batch row: %w", sErr)
		}
		var t task.Task
		if uErr := json.Unmarshal(payload, &t); uErr != nil {
			s.logger.Error("skipping malformed batch payload",
				slog.String("batch", batch),
				slog.String("error", uErr.Error()),
			)
			continue
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metro/postgres: get batch: %w", err)
	}
	return tasks, nil
}

// ClearBatch removes the batch rows and the start time in one transaction.
func (s *Store) ClearBatch(ctx context.Context, batch string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("metro/postgres: clear batch begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM metro_batches WHERE batch = $1`, batch); err != nil {
		return fmt.Errorf("metro/postgres: clear batch: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM metro_batch_start WHERE batch = $1`, batch); err != nil {
		return fmt.Errorf("metro/postgres: clear batch start: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("metro/postgres: clear batch commit: %w", err)
	}
	return nil
}

// SetBatchStartTime records when the first task entered the batch.
func (s *Store) SetBatchStartTime(ctx context.Context, batch string, start time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metro_batch_start (batch, started_at)
		VALUES ($1, $2)
		ON CONFLICT (batch) DO UPDATE SET started_at = EXCLUDED.started_at`,
		batch, start.UTC(),
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: set batch start time: %w", err)
	}
	return nil
}

// GetBatchStartTime returns the recorded start time, or the zero time.
func (s *Store) GetBatchStartTime(ctx context.Context, batch string) (time.Time, error) {
	var start time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM metro_batch_start WHERE batch = $1`,
		batch,
	).Scan(&start)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("metro/postgres: get batch start time: %w", err)
	}
	return start, nil
}
