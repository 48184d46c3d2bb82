package redis

import (
	"context"
	"fmt"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// SetTaskStatus writes the status record Hash for a task. The error field
// is only meaningful for failed tasks.
func (s *Store) SetTaskStatus(ctx context.Context, taskID id.TaskID, state task.State, errMsg string) error {
	err := s.client.HSet(ctx, statusKey(taskID.String()),
		"id", taskID.String(),
		"status", string(state),
		"error", errMsg,
	).Err()
	if err != nil {
		return fmt.Errorf("metro/redis: set task status: %w", err)
	}
	return nil
}

// GetTaskStatus reads the status record for a task.
func (s *Store) GetTaskStatus(ctx context.Context, taskID id.TaskID) (*task.Status, error) {
	vals, err := s.client.HGetAll(ctx, statusKey(taskID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("metro/redis: get task status: %w", err)
	}
	if len(vals) == 0 {
		return nil, metro.ErrStatusNotFound
	}

	st := &task.Status{
		Status: task.State(vals["status"]),
		Error:  vals["error"],
	}
	st.ID, err = id.ParseTaskID(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("metro/redis: parse status id: %w", err)
	}
	return st, nil
}
