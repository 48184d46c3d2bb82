package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// SetTaskStatus upserts the status record for a task.
func (s *Store) SetTaskStatus(ctx context.Context, taskID id.TaskID, state task.State, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metro_status (task_id, status, error)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id) DO UPDATE
			SET status = EXCLUDED.status, error = EXCLUDED.error`,
		taskID.String(), string(state), errMsg,
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: set task status: %w", err)
	}
	return nil
}

// GetTaskStatus reads the status record for a task.
func (s *Store) GetTaskStatus(ctx context.Context, taskID id.TaskID) (*task.Status, error) {
	var (
		status string
		errMsg string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT status, error FROM metro_status WHERE task_id = $1`,
		taskID.String(),
	).Scan(&status, &errMsg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, metro.ErrStatusNotFound
		}
		return nil, fmt.Errorf("metro/postgres: get task status: %w", err)
	}

	return &task.Status{ID: taskID, Status: task.State(status), Error: errMsg}, nil
}
