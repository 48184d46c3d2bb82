// Package memory implements backend.Backend entirely in process memory.
// Safe for concurrent access from multiple goroutines. Intended for unit
// testing and development; it cannot coordinate across OS processes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/backend"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// Compile-time interface check.
var _ backend.Backend = (*Store)(nil)

// acquireRetryInterval is shorter than the Redis backend's 100ms because
// contention here is only ever between goroutines of one process.
const acquireRetryInterval = 10 * time.Millisecond

type scheduledEntry struct {
	t   *task.Task
	due time.Time
}

type lockEntry struct {
	token   string
	expires time.Time
}

// Store is a fully in-memory implementation of backend.Backend.
type Store struct {
	mu sync.Mutex

	queues     map[string][]*task.Task
	scheduled  map[string][]scheduledEntry
	batches    map[string][]*task.Task
	batchStart map[string]time.Time
	locks      map[string]lockEntry
	statuses   map[string]*task.Status
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		queues:     make(map[string][]*task.Task),
		scheduled:  make(map[string][]scheduledEntry),
		batches:    make(map[string][]*task.Task),
		batchStart: make(map[string]time.Time),
		locks:      make(map[string]lockEntry),
		statuses:   make(map[string]*task.Status),
	}
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// EnqueueJob appends the task to the tail of the queue.
func (m *Store) EnqueueJob(_ context.Context, queue string, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[queue] = append(m.queues[queue], t)
	return nil
}

// DequeueJob pops the oldest task from the queue, or (nil, nil) when empty.
func (m *Store) DequeueJob(_ context.Context, queue string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[queue]
	if len(q) == 0 {
		return nil, nil
	}
	t := q[0]
	m.queues[queue] = q[1:]
	return t, nil
}

// ScheduleJob records the task with its due time.
func (m *Store) ScheduleJob(_ context.Context, delay time.Duration, queue string, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled[queue] = append(m.scheduled[queue], scheduledEntry{t: t, due: time.Now().Add(delay)})
	return nil
}

// GetDueJobs returns scheduled tasks whose due time has arrived, without
// removing them.
func (m *Store) GetDueJobs(_ context.Context, queue string) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var due []*task.Task
	for _, e := range m.scheduled[queue] {
		if !e.due.After(now) {
			due = append(due, e.t)
		}
	}
	return due, nil
}

// RemoveScheduledJob removes the scheduled task by ID; a no-op when absent.
func (m *Store) RemoveScheduledJob(_ context.Context, taskID id.TaskID, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := taskID.String()
	entries := m.scheduled[queue]
	for i, e := range entries {
		if e.t.ID.String() == want {
			m.scheduled[queue] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddToBatch appends the task to the batch in insertion order.
func (m *Store) AddToBatch(_ context.Context, batch string, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch] = append(m.batches[batch], t)
	return nil
}

// GetBatchSize returns the number of accumulated tasks.
func (m *Store) GetBatchSize(_ context.Context, batch string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches[batch]), nil
}

// GetBatch returns the accumulated tasks in insertion order.
func (m *Store) GetBatch(_ context.Context, batch string) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*task.Task, len(m.batches[batch]))
	copy(out, m.batches[batch])
	return out, nil
}

// ClearBatch removes the batch and its start time together.
func (m *Store) ClearBatch(_ context.Context, batch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, batch)
	delete(m.batchStart, batch)
	return nil
}

// SetBatchStartTime records when the first task entered the batch.
func (m *Store) SetBatchStartTime(_ context.Context, batch string, start time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchStart[batch] = start
	return nil
}

// GetBatchStartTime returns the recorded start time, or the zero time.
func (m *Store) GetBatchStartTime(_ context.Context, batch string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchStart[batch], nil
}

// AcquireLock takes the named lock, retrying until wait elapses. Expired
// locks are stolen, mirroring the TTL behavior of the Redis realization.
func (m *Store) AcquireLock(ctx context.Context, name string, wait time.Duration) (string, bool, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		m.mu.Lock()
		e, held := m.locks[name]
		if !held || time.Now().After(e.expires) {
			m.locks[name] = lockEntry{token: token, expires: time.Now().Add(wait)}
			m.mu.Unlock()
			return token, true, nil
		}
		m.mu.Unlock()

		if !time.Now().Before(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

// ReleaseLock releases the lock only if token is the current holder.
func (m *Store) ReleaseLock(_ context.Context, name string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, held := m.locks[name]
	if !held || e.token != token {
		return metro.ErrLockNotHeld
	}
	delete(m.locks, name)
	return nil
}

// SetTaskStatus writes the status record for a task.
func (m *Store) SetTaskStatus(_ context.Context, taskID id.TaskID, state task.State, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[taskID.String()] = &task.Status{ID: taskID, Status: state, Error: errMsg}
	return nil
}

// GetTaskStatus reads the status record for a task.
func (m *Store) GetTaskStatus(_ context.Context, taskID id.TaskID) (*task.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.statuses[taskID.String()]
	if !ok {
		return nil, metro.ErrStatusNotFound
	}
	cp := *st
	return &cp, nil
}
