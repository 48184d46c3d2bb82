package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/backend"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/observe"
	"github.com/ricardo-agz/metro/task"
)

// Client is the application-facing enqueue API. It builds immutable Tasks
// and hands them to the Backend; callers never observe execution failures
// through these calls, only by polling Status.
type Client struct {
	backend  backend.Backend
	registry *Registry
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the structured logger for the client.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClientMetrics sets the metrics recorder for the client.
func WithClientMetrics(m *observe.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client over the given backend and registry.
func NewClient(b backend.Backend, r *Registry, opts ...ClientOption) *Client {
	c := &Client{
		backend:  b,
		registry: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue builds a Task for the named class with a fresh unique ID and
// appends it to the class's queue for immediate execution. The status
// record is written before the task becomes dequeuable so the Worker's
// later transitions never race a missing record.
func (c *Client) Enqueue(ctx context.Context, name string, args []any, kwargs map[string]any) (id.TaskID, error) {
	typ, ok := c.registry.Get(name)
	if !ok {
		return id.Nil, fmt.Errorf("%w: %q", metro.ErrUnknownJob, name)
	}

	t := task.New(name, typ.Queue, task.StateQueued, args, kwargs)
	if err := c.backend.SetTaskStatus(ctx, t.ID, task.StateQueued, ""); err != nil {
		return id.Nil, err
	}
	if err := c.backend.EnqueueJob(ctx, typ.Queue, t); err != nil {
		return id.Nil, err
	}

	c.metrics.TaskEnqueued(ctx, typ.Queue)
	c.logger.Debug("enqueued task",
		slog.String("task_id", t.ID.String()),
		slog.String("class", name),
		slog.String("queue", typ.Queue),
	)
	return t.ID, nil
}

// Schedule builds a Task for the named class and records it for promotion
// into its queue once runAt arrives. A runAt in the past schedules the
// task as immediately due.
func (c *Client) Schedule(ctx context.Context, name string, runAt time.Time, args []any, kwargs map[string]any) (id.TaskID, error) {
	typ, ok := c.registry.Get(name)
	if !ok {
		return id.Nil, fmt.Errorf("%w: %q", metro.ErrUnknownJob, name)
	}

	t := task.New(name, typ.Queue, task.StateScheduled, args, kwargs)
	at := runAt.UTC()
	t.RunAt = &at

	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}

	if err := c.backend.SetTaskStatus(ctx, t.ID, task.StateScheduled, ""); err != nil {
		return id.Nil, err
	}
	if err := c.backend.ScheduleJob(ctx, delay, typ.Queue, t); err != nil {
		return id.Nil, err
	}

	c.metrics.TaskScheduled(ctx, typ.Queue)
	c.logger.Debug("scheduled task",
		slog.String("task_id", t.ID.String()),
		slog.String("class", name),
		slog.String("queue", typ.Queue),
		slog.Time("run_at", at),
	)
	return t.ID, nil
}

// EnqueueBatch builds a Task for the named class and submits it directly
// to the class's batch accumulator. The class must have both BatchSize and
// BatchInterval configured. The batch start time is recorded when the
// accumulator receives its first task.
func (c *Client) EnqueueBatch(ctx context.Context, name string, args []any, kwargs map[string]any) (id.TaskID, error) {
	typ, ok := c.registry.Get(name)
	if !ok {
		return id.Nil, fmt.Errorf("%w: %q", metro.ErrUnknownJob, name)
	}
	if typ.BatchSize <= 0 || typ.BatchInterval <= 0 {
		return id.Nil, fmt.Errorf("%w: %q needs both batch size and batch interval for EnqueueBatch", metro.ErrNotBatchable, name)
	}

	t := task.New(name, typ.Queue, task.StateBatchQueued, args, kwargs)
	if err := c.backend.SetTaskStatus(ctx, t.ID, task.StateBatchQueued, ""); err != nil {
		return id.Nil, err
	}
	if err := c.backend.AddToBatch(ctx, name, t); err != nil {
		return id.Nil, err
	}

	start, err := c.backend.GetBatchStartTime(ctx, name)
	if err != nil {
		return id.Nil, err
	}
	if start.IsZero() {
		if err := c.backend.SetBatchStartTime(ctx, name, time.Now()); err != nil {
			return id.Nil, err
		}
	}

	c.metrics.TaskEnqueued(ctx, typ.Queue)
	c.logger.Debug("enqueued batch task",
		slog.String("task_id", t.ID.String()),
		slog.String("class", name),
	)
	return t.ID, nil
}

// CancelScheduled removes a scheduled task before promotion. It is a no-op
// when the task was already promoted or never existed — cancellation
// intentionally races promotion, and promotion may win.
func (c *Client) CancelScheduled(ctx context.Context, name string, taskID id.TaskID) error {
	typ, ok := c.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", metro.ErrUnknownJob, name)
	}
	return c.backend.RemoveScheduledJob(ctx, taskID, typ.Queue)
}

// Status returns the current status record for a task.
func (c *Client) Status(ctx context.Context, taskID id.TaskID) (*task.Status, error) {
	return c.backend.GetTaskStatus(ctx, taskID)
}
