// Package observe records task lifecycle metrics through the OpenTelemetry
// metric API. A nil *Metrics is a valid no-op recorder, so callers never
// guard their instrumentation sites.
package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scopeName is the instrumentation scope reported to the meter provider.
const scopeName = "github.com/ricardo-agz/metro"

// Metrics holds the instruments for task lifecycle events.
type Metrics struct {
	enqueued  metric.Int64Counter
	scheduled metric.Int64Counter
	promoted  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	batches   metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates the metro instruments on the given meter provider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(scopeName)

	m := &Metrics{}
	var err error

	if m.enqueued, err = meter.Int64Counter("metro.tasks.enqueued",
		metric.WithDescription("Tasks accepted for immediate or batched execution."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.scheduled, err = meter.Int64Counter("metro.tasks.scheduled",
		metric.WithDescription("Tasks recorded for delayed execution."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.promoted, err = meter.Int64Counter("metro.tasks.promoted",
		metric.WithDescription("Scheduled tasks moved into their queue at due time."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.completed, err = meter.Int64Counter("metro.tasks.completed",
		metric.WithDescription("Tasks that finished successfully."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.failed, err = meter.Int64Counter("metro.tasks.failed",
		metric.WithDescription("Tasks that finished with an error."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.batches, err = meter.Int64Counter("metro.batches.flushed",
		metric.WithDescription("Batch executions triggered by size or interval."),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("metro.task.duration",
		metric.WithDescription("Task execution duration."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("observe: create instrument: %w", err)
	}

	return m, nil
}

// NewFromGlobal creates the metro instruments on the globally registered
// meter provider.
func NewFromGlobal() (*Metrics, error) {
	return New(otel.GetMeterProvider())
}

// TaskEnqueued records a task accepted into a queue or batch accumulator.
func (m *Metrics) TaskEnqueued(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// TaskScheduled records a task stored for delayed execution.
func (m *Metrics) TaskScheduled(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.scheduled.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// TaskPromoted records a scheduled task promoted into its queue.
func (m *Metrics) TaskPromoted(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.promoted.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// TaskCompleted records a successful execution and its duration.
func (m *Metrics) TaskCompleted(ctx context.Context, queue, class string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("class", class),
	)
	m.completed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// TaskFailed records a failed execution.
func (m *Metrics) TaskFailed(ctx context.Context, queue, class string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("class", class),
	))
}

// BatchFlushed records a batch execution of size tasks.
func (m *Metrics) BatchFlushed(ctx context.Context, class string, size int) {
	if m == nil {
		return
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class),
		attribute.Int("size", size),
	))
}
