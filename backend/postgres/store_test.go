package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	metro "github.com/ricardo-agz/metro"
	"github.com/ricardo-agz/metro/backend/postgres"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

// newStore connects to the database named by METRO_POSTGRES_DSN and
// migrates the schema. Tests are skipped when the variable is unset so the
// suite runs without a database by default.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("METRO_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("METRO_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// uniqueQueue isolates each test run from leftover rows of earlier runs.
func uniqueQueue(prefix string) string {
	return prefix + "-" + id.NewTaskID().String()
}

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	queue := uniqueQueue("q")

	var ids []string
	for _, label := range []string{"a", "b", "c"} {
		tk := task.New("work", queue, task.StateQueued, []any{label}, nil)
		if err := store.EnqueueJob(ctx, queue, tk); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, tk.ID.String())
	}

	for i, want := range ids {
		got, err := store.DequeueJob(ctx, queue)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if got == nil {
			t.Fatalf("dequeue %d returned nil", i)
		}
		if got.ID.String() != want {
			t.Errorf("dequeue %d = %q, want %q", i, got.ID.String(), want)
		}
	}

	got, err := store.DequeueJob(ctx, queue)
	if err != nil {
		t.Fatalf("dequeue empty: %v", err)
	}
	if got != nil {
		t.Errorf("dequeue on empty queue = %v, want nil", got)
	}
}

func TestScheduledLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	queue := uniqueQueue("q")

	future := task.New("work", queue, task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, time.Hour, queue, future); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	past := task.New("work", queue, task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, -time.Minute, queue, past); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due, err := store.GetDueJobs(ctx, queue)
	if err != nil {
		t.Fatalf("get due jobs: %v", err)
	}
	if len(due) != 1 || due[0].ID.String() != past.ID.String() {
		t.Fatalf("due = %v, want only the past-due task", due)
	}

	if err := store.RemoveScheduledJob(ctx, past.ID, queue); err != nil {
		t.Fatalf("remove: %v", err)
	}
	due, _ = store.GetDueJobs(ctx, queue)
	if len(due) != 0 {
		t.Errorf("due count after remove = %d, want 0", len(due))
	}
	if err := store.RemoveScheduledJob(ctx, past.ID, queue); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	batch := uniqueQueue("cls")

	var ids []string
	for i := 0; i < 3; i++ {
		tk := task.New(batch, "q", task.StateBatchQueued, nil, nil)
		if err := store.AddToBatch(ctx, batch, tk); err != nil {
			t.Fatalf("add to batch: %v", err)
		}
		ids = append(ids, tk.ID.String())
	}
	if err := store.SetBatchStartTime(ctx, batch, time.Now()); err != nil {
		t.Fatalf("set start time: %v", err)
	}

	size, err := store.GetBatchSize(ctx, batch)
	if err != nil {
		t.Fatalf("batch size: %v", err)
	}
	if size != 3 {
		t.Errorf("batch size = %d, want 3", size)
	}

	tasks, err := store.GetBatch(ctx, batch)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	for i, want := range ids {
		if tasks[i].ID.String() != want {
			t.Errorf("batch[%d] = %q, want %q (insertion order)", i, tasks[i].ID.String(), want)
		}
	}

	start, err := store.GetBatchStartTime(ctx, batch)
	if err != nil {
		t.Fatalf("get start time: %v", err)
	}
	if start.IsZero() {
		t.Error("expected a recorded start time")
	}

	if err := store.ClearBatch(ctx, batch); err != nil {
		t.Fatalf("clear batch: %v", err)
	}
	size, _ = store.GetBatchSize(ctx, batch)
	if size != 0 {
		t.Errorf("batch size after clear = %d, want 0", size)
	}
	start, _ = store.GetBatchStartTime(ctx, batch)
	if !start.IsZero() {
		t.Error("clear must reset the batch start time too")
	}
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	name := uniqueQueue("lock")

	token, acquired, err := store.AcquireLock(ctx, name, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired || token == "" {
		t.Fatal("expected to acquire an uncontended lock")
	}

	_, acquired2, err := store.AcquireLock(ctx, name, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("contended acquire: %v", err)
	}
	if acquired2 {
		t.Error("second acquire of a held lock must fail")
	}

	if err := store.ReleaseLock(ctx, name, "not-the-token"); !errors.Is(err, metro.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for wrong token, got %v", err)
	}
	if err := store.ReleaseLock(ctx, name, token); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, acquired3, err := store.AcquireLock(ctx, name, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !acquired3 {
		t.Error("expected to acquire after release")
	}
}

func TestTaskStatus(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	taskID := id.NewTaskID()

	_, err := store.GetTaskStatus(ctx, taskID)
	if !errors.Is(err, metro.ErrStatusNotFound) {
		t.Errorf("expected ErrStatusNotFound, got %v", err)
	}

	if err := store.SetTaskStatus(ctx, taskID, task.StateQueued, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := store.SetTaskStatus(ctx, taskID, task.StateFailed, "boom"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	st, err := store.GetTaskStatus(ctx, taskID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if st.Status != task.StateFailed || st.Error != "boom" {
		t.Errorf("status = %+v, want failed/boom", st)
	}
}
