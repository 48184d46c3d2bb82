package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	metro "github.com/ricardo-agz/metro"
	redisbackend "github.com/ricardo-agz/metro/backend/redis"
	"github.com/ricardo-agz/metro/id"
	"github.com/ricardo-agz/metro/task"
)

func newStore(t *testing.T) (*redisbackend.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisbackend.New(client), mr
}

func TestPing(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	var ids []string
	for _, label := range []string{"a", "b", "c"} {
		tk := task.New("work", "q", task.StateQueued, []any{label}, nil)
		if err := store.EnqueueJob(ctx, "q", tk); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, tk.ID.String())
	}

	for i, want := range ids {
		got, err := store.DequeueJob(ctx, "q")
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

	got, err := store.DequeueJob(ctx, "q")
	if err != nil {
		t.Fatalf("dequeue empty: %v", err)
	}
	if got != nil {
		t.Errorf("dequeue on empty queue = %v, want nil", got)
	}
}

// The key layout is read by other worker processes; pin it.
func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	tk := task.New("work", "emails", task.StateQueued, nil, nil)
	if err := store.EnqueueJob(ctx, "emails", tk); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !mr.Exists("queue:emails") {
		t.Error("expected List at queue:emails")
	}

	sched := task.New("work", "emails", task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, time.Hour, "emails", sched); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !mr.Exists("scheduled_jobs:emails") {
		t.Error("expected Sorted Set at scheduled_jobs:emails")
	}

	if err := store.AddToBatch(ctx, "log-event", tk); err != nil {
		t.Fatalf("add to batch: %v", err)
	}
	if !mr.Exists("batch:log-event") {
		t.Error("expected List at batch:log-event")
	}
	if err := store.SetBatchStartTime(ctx, "log-event", time.Now()); err != nil {
		t.Fatalf("set start time: %v", err)
	}
	if !mr.Exists("batch_start_times") {
		t.Error("expected Hash at batch_start_times")
	}

	if _, _, err := store.AcquireLock(ctx, "flush", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists("lock:flush") {
		t.Error("expected lock key at lock:flush")
	}

	if err := store.SetTaskStatus(ctx, tk.ID, task.StateQueued, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if !mr.Exists("job_status:" + tk.ID.String()) {
		t.Error("expected status Hash at job_status:{id}")
	}
}

func TestMalformedPayloadDropped(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	if _, err := mr.Lpush("queue:q", "not json"); err != nil {
		t.Fatalf("lpush: %v", err)
	}

	got, err := store.DequeueJob(ctx, "q")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != nil {
		t.Errorf("malformed payload should be dropped, got %v", got)
	}
	// The bad entry is consumed, not left to wedge the queue.
	if mr.Exists("queue:q") {
		t.Error("malformed payload still on the queue")
	}
}

func TestScheduledVisibility(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	future := task.New("work", "q", task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, time.Hour, "q", future); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	past := task.New("work", "q", task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, -time.Minute, "q", past); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due, err := store.GetDueJobs(ctx, "q")
	if err != nil {
		t.Fatalf("get due jobs: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due count = %d, want 1", len(due))
	}
	if due[0].ID.String() != past.ID.String() {
		t.Errorf("due task = %q, want %q", due[0].ID.String(), past.ID.String())
	}

	// Reading does not remove.
	again, _ := store.GetDueJobs(ctx, "q")
	if len(again) != 1 {
		t.Errorf("second read due count = %d, want 1", len(again))
	}
}

func TestRemoveScheduledJob(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	keep := task.New("work", "q", task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, -time.Minute, "q", keep); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	drop := task.New("work", "q", task.StateScheduled, nil, nil)
	if err := store.ScheduleJob(ctx, -time.Minute, "q", drop); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := store.RemoveScheduledJob(ctx, drop.ID, "q"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	due, _ := store.GetDueJobs(ctx, "q")
	if len(due) != 1 || due[0].ID.String() != keep.ID.String() {
		t.Errorf("expected only the kept task to remain, got %v", due)
	}

	if err := store.RemoveScheduledJob(ctx, drop.ID, "q"); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if err := store.RemoveScheduledJob(ctx, id.NewTaskID(), "q"); err != nil {
		t.Errorf("remove unknown: %v", err)
	}
}

func TestBatchAccumulation(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	size, err := store.GetBatchSize(ctx, "cls")
	if err != nil {
		t.Fatalf("batch size: %v", err)
	}
	if size != 0 {
		t.Errorf("empty batch size = %d, want 0", size)
	}
	start, err := store.GetBatchStartTime(ctx, "cls")
	if err != nil {
		t.Fatalf("start time: %v", err)
	}
	if !start.IsZero() {
		t.Errorf("empty batch start time = %v, want zero", start)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		tk := task.New("cls", "q", task.StateBatchQueued, nil, nil)
		if err := store.AddToBatch(ctx, "cls", tk); err != nil {
			t.Fatalf("add to batch: %v", err)
		}
		ids = append(ids, tk.ID.String())
	}
	now := time.Now()
	if err := store.SetBatchStartTime(ctx, "cls", now); err != nil {
		t.Fatalf("set start time: %v", err)
	}

	size, _ = store.GetBatchSize(ctx, "cls")
	if size != 3 {
		t.Errorf("batch size = %d, want 3", size)
	}

	batch, err := store.GetBatch(ctx, "cls")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	for i, want := range ids {
		if batch[i].ID.String() != want {
			t.Errorf("batch[%d] = %q, want %q (insertion order)", i, batch[i].ID.String(), want)
		}
	}

	got, _ := store.GetBatchStartTime(ctx, "cls")
	if d := got.Sub(now); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("start time = %v, want within 1ms of %v", got, now)
	}

	if err := store.ClearBatch(ctx, "cls"); err != nil {
		t.Fatalf("clear batch: %v", err)
	}
	size, _ = store.GetBatchSize(ctx, "cls")
	if size != 0 {
		t.Errorf("batch size after clear = %d, want 0", size)
	}
	start, _ = store.GetBatchStartTime(ctx, "cls")
	if !start.IsZero() {
		t.Error("clear must reset the batch start time too")
	}
}

func TestLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	token, acquired, err := store.AcquireLock(ctx, "flush", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired || token == "" {
		t.Fatal("expected to acquire an uncontended lock")
	}

	_, acquired2, err := store.AcquireLock(ctx, "flush", 150*time.Millisecond)
	if err != nil {
		t.Fatalf("contended acquire: %v", err)
	}
	if acquired2 {
		t.Error("second acquire of a held lock must fail")
	}

	if err := store.ReleaseLock(ctx, "flush", token); err != nil {
		t.Fatalf("release: %v", err)
	}

	token2, acquired3, err := store.AcquireLock(ctx, "flush", 150*time.Millisecond)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !acquired3 {
		t.Error("expected to acquire after release")
	}
	if token2 == token {
		t.Error("each acquisition must mint a fresh token")
	}
}

func TestLockStaleTokenRelease(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	token, _, err := store.AcquireLock(ctx, "flush", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	err = store.ReleaseLock(ctx, "flush", "not-the-token")
	if !errors.Is(err, metro.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for wrong token, got %v", err)
	}

	// The wrong-token release must not have freed the lock.
	if err := store.ReleaseLock(ctx, "flush", token); err != nil {
		t.Errorf("correct-token release: %v", err)
	}

	err = store.ReleaseLock(ctx, "flush", token)
	if !errors.Is(err, metro.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld after lock gone, got %v", err)
	}
}

func TestLockExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	if _, _, err := store.AcquireLock(ctx, "flush", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	mr.FastForward(2 * time.Second)

	_, acquired, err := store.AcquireLock(ctx, "flush", 150*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if !acquired {
		t.Error("an expired lock should be acquirable")
	}
}

func TestTaskStatus(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	taskID := id.NewTaskID()

	_, err := store.GetTaskStatus(ctx, taskID)
	if !errors.Is(err, metro.ErrStatusNotFound) {
		t.Errorf("expected ErrStatusNotFound, got %v", err)
	}

	if err := store.SetTaskStatus(ctx, taskID, task.StateRunning, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}
	st, err := store.GetTaskStatus(ctx, taskID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if st.ID.String() != taskID.String() {
		t.Errorf("status ID = %q, want %q", st.ID.String(), taskID.String())
	}
	if st.Status != task.StateRunning || st.Error != "" {
		t.Errorf("status = %+v", st)
	}

	if err := store.SetTaskStatus(ctx, taskID, task.StateFailed, "boom"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	st, _ = store.GetTaskStatus(ctx, taskID)
	if st.Status != task.StateFailed || st.Error != "boom" {
		t.Errorf("status = %+v, want failed/boom", st)
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	orig := task.New("send-email", "emails", task.StateQueued,
		[]any{"alice@example.com"}, map[string]any{"subject": "hi"})
	if err := store.EnqueueJob(ctx, "emails", orig); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := store.DequeueJob(ctx, "emails")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.Class != "send-email" || got.Queue != "emails" {
		t.Errorf("task = %+v", got)
	}
	if len(got.Args) != 1 || got.Args[0] != "alice@example.com" {
		t.Errorf("Args = %v", got.Args)
	}
	if got.Kwargs["subject"] != "hi" {
		t.Errorf("Kwargs = %v", got.Kwargs)
	}
}
