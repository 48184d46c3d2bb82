package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ricardo-agz/metro/task"
)

// AddToBatch appends the task to the batch List. RPUSH keeps the List in
// insertion order, which is the order batch contents are handed to
// PerformBatch.
func (s *Store) AddToBatch(ctx context.Context, batch string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/redis: marshal task: %w", err)
	}
	if err := s.client.RPush(ctx, batchKey(batch), payload).Err(); err != nil {
		return fmt.Errorf("metro/redis: add to batch: %w", err)
	}
	return nil
}

// GetBatchSize returns the number of tasks accumulated in the batch.
func (s *Store) GetBatchSize(ctx context.Context, batch string) (int, error) {
	size, err := s.client.LLen(ctx, batchKey(batch)).Result()
	if err != nil {
		return 0, fmt.Errorf("metro/redis: get batch size: %w", err)
	}
	return int(size), nil
}

// GetBatch returns all tasks in the batch, in insertion order.
func (s *Store) GetBatch(ctx context.Context, batch string) ([]*task.Task, error) {
	payloads, err := s.client.LRange(ctx, batchKey(batch), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("metro/redis: get batch: %w", err)
	}

	tasks := make([]*task.Task, 0, len(payloads))
	for _, payload := range payloads {
		var t task.Task
		if uErr := json.Unmarshal([]byte(payload), &t); uErr != nil {
			s.logger.Error("skipping malformed batch payload",
				slog.String("batch", batch),
				slog.String("error", uErr.Error()),
			)
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// ClearBatch removes the batch List and its start-time field together.
func (s *Store) ClearBatch(ctx context.Context, batch string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, batchKey(batch))
	pipe.HDel(ctx, batchStartTimesKey, batch)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("metro/redis: clear batch: %w", err)
	}
	return nil
}

// SetBatchStartTime records when the first task entered the batch, as
// fractional unix seconds in the shared start-time Hash.
func (s *Store) SetBatchStartTime(ctx context.Context, batch string, start time.Time) error {
	val := strconv.FormatFloat(unixSeconds(start), 'f', -1, 64)
	if err := s.client.HSet(ctx, batchStartTimesKey, batch, val).Err(); err != nil {
		return fmt.Errorf("metro/redis: set batch start time: %w", err)
	}
	return nil
}

// GetBatchStartTime returns the batch's start time, or the zero time when
// none is recorded.
func (s *Store) GetBatchStartTime(ctx context.Context, batch string) (time.Time, error) {
	val, err := s.client.HGet(ctx, batchStartTimesKey, batch).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("metro/redis: get batch start time: %w", err)
	}

	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("metro/redis: parse batch start time: %w", err)
	}
	return time.Unix(0, int64(secs*float64(time.Second))), nil
}
