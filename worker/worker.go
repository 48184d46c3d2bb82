// Package worker provides the metro worker runtime — one processing loop
// per distinct queue, batch accumulation and flushing under a distributed
// lock, and a promotion loop that moves due scheduled tasks into their
// queues.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/backend"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/job"
	"github.com/ricardo-agz/metro/observe"
)

// Worker runs the processing loops against a Backend. Construct with New,
// register all job classes first, then call Run.
type Worker struct {
	backend  backend.Backend
	registry *job.Registry
	cfg      metro.Config
	logger   *slog.Logger
	metrics  *observe.Metrics
	workerID id.WorkerID

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the structured logger for the worker.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithMetrics sets the metrics recorder for the worker.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithConfig replaces the default timing configuration.
func WithConfig(cfg metro.Config) Option {
	return func(w *Worker) { w.cfg = cfg }
}

// New creates a Worker over the given backend and registry.
func New(b backend.Backend, r *job.Registry, opts ...Option) *Worker {
	w := &Worker{
		backend:  b,
		registry: r,
		cfg:      metro.DefaultConfig(),
		logger:   slog.Default(),
		workerID: id.NewWorkerID(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() id.WorkerID { return w.workerID }

// Run blocks processing jobs until ctx is cancelled. It launches one loop
// per distinct queue across all registered job classes, plus the scheduled
// promotion loop. On cancellation every loop stops after its current
// iteration; in-flight executions are allowed to finish. The backend
// handle is owned by the caller and is not closed here.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.backend == nil {
		w.mu.Unlock()
		return metro.ErrNoBackend
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	queues := w.registry.Queues()
	w.logger.Info("worker starting",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", queues),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		g.Go(func() error {
			w.queueLoop(gctx, q)
			return nil
		})
	}
	g.Go(func() error {
		w.promotionLoop(gctx, queues)
		return nil
	})

	err := g.Wait()
	w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return err
}

// Start launches Run in a background goroutine and returns immediately.
// Pair with Stop for graceful shutdown; callers that want to supervise the
// loops themselves use Run directly.
func (w *Worker) Start(ctx context.Context) error {
	if w.backend == nil {
		return metro.ErrNoBackend
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		cancel()
		return nil
	}
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		_ = w.Run(runCtx)
	}()
	return nil
}

// Stop cancels the processing loops and waits up to ShutdownTimeout for
// them to finish. Safe to call on a worker that was never started.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownTimeout):
		return fmt.Errorf("metro: worker did not stop within %s: %w",
			w.cfg.ShutdownTimeout, context.DeadlineExceeded)
	}
}

// sleep pauses for d, returning early when ctx is cancelled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
