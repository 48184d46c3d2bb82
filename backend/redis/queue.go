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

	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// EnqueueJob pushes the task JSON onto the head of the queue List.
// DequeueJob pops from the tail, yielding FIFO order.
func (s *Store) EnqueueJob(ctx context.Context, queue string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/redis: marshal task: %w", err)
	}
	if err := s.client.LPush(ctx, queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("metro/redis: enqueue job: %w", err)
	}
	return nil
}

// DequeueJob atomically pops the oldest pending task from the queue.
// An empty queue yields (nil, nil). A payload that fails to decode is
// logged and dropped rather than wedging the queue.
func (s *Store) DequeueJob(ctx context.Context, queue string) (*task.Task, error) {
	payload, err := s.client.RPop(ctx, queueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("metro/redis: dequeue job: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		s.logger.Error("dropping malformed task payload",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return &t, nil
}

// ScheduleJob records the task in the queue's Sorted Set, scored by the
// unix time at which it becomes due.
func (s *Store) ScheduleJob(ctx context.Context, delay time.Duration, queue string, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("metro/redis: marshal task: %w", err)
	}
	score := unixSeconds(time.Now().Add(delay))
	err = s.client.ZAdd(ctx, scheduledKey(queue), goredis.Z{Score: score, Member: payload}).Err()
	if err != nil {
		return fmt.Errorf("metro/redis: schedule job: %w", err)
	}
	return nil
}

// GetDueJobs returns all scheduled tasks whose due time has arrived,
// without removing them. Removal is a separate step so promotion can be
// retried if the enqueue step fails.
func (s *Store) GetDueJobs(ctx context.Context, queue string) ([]*task.Task, error) {
	now := strconv.FormatFloat(unixSeconds(time.Now()), 'f', -1, 64)
	payloads, err := s.client.ZRangeByScore(ctx, scheduledKey(queue), &goredis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("metro/redis: get due jobs: %w", err)
	}

	tasks := make([]*task.Task, 0, len(payloads))
	for _, payload := range payloads {
		var t task.Task
		if uErr := json.Unmarshal([]byte(payload), &t); uErr != nil {
			s.logger.Error("skipping malformed scheduled payload",
				slog.String("queue", queue),
				slog.String("error", uErr.Error()),
			)
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// RemoveScheduledJob removes the scheduled task with the given ID from the
// queue's Sorted Set. It is a no-op if the task was already promoted or
// never existed.
func (s *Store) RemoveScheduledJob(ctx context.Context, taskID id.TaskID, queue string) error {
	members, err := s.client.ZRange(ctx, scheduledKey(queue), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("metro/redis: remove scheduled scan: %w", err)
	}

	want := taskID.String()
	for _, payload := range members {
		var t task.Task
		if uErr := json.Unmarshal([]byte(payload), &t); uErr != nil {
			continue
		}
		if t.ID.String() == want {
			if zErr := s.client.ZRem(ctx, scheduledKey(queue), payload).Err(); zErr != nil {
				return fmt.Errorf("metro/redis: remove scheduled job: %w", zErr)
			}
			return nil
		}
	}
	return nil
}

// unixSeconds converts t to fractional unix seconds, the score unit used by
// the scheduled Sorted Sets.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
