package task_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ricardo-agz/metro/task"
)

func TestNew(t *testing.T) {
	tk := task.New("send-email", "emails", task.StateQueued,
		[]any{"alice@example.com"}, map[string]any{"subject": "hi"})

	if tk.ID.IsNil() {
		t.Fatal("expected a fresh task ID")
	}
	if tk.Class != "send-email" {
		t.Errorf("Class = %q, want %q", tk.Class, "send-email")
	}
	if tk.Queue != "emails" {
		t.Errorf("Queue = %q, want %q", tk.Queue, "emails")
	}
	if tk.Status != task.StateQueued {
		t.Errorf("Status = %q, want %q", tk.Status, task.StateQueued)
	}
	if tk.EnqueueTime.IsZero() {
		t.Error("EnqueueTime not set")
	}
	if tk.RunAt != nil {
		t.Error("RunAt should be nil for an immediate task")
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state task.State
		want  bool
	}{
		{task.StateQueued, false},
		{task.StateScheduled, false},
		{task.StateBatchQueued, false},
		{task.StateRunning, false},
		{task.StateCompleted, true},
		{task.StateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("State(%q).Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

// The JSON field names are shared with other worker processes reading the
// same queues, so they are pinned here.
func TestWireFieldNames(t *testing.T) {
	tk := task.New("resize", "images", task.StateScheduled, []any{1}, nil)
	at := time.Now().UTC().Add(time.Minute)
	tk.RunAt = &at

	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, name := range []string{"id", "class", "args", "kwargs", "enqueue_time", "status", "queue", "run_at"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("wire format missing field %q", name)
		}
	}
}

func TestWireOmitsRunAtWhenUnset(t *testing.T) {
	tk := task.New("resize", "images", task.StateQueued, nil, nil)
	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["run_at"]; ok {
		t.Error("run_at should be omitted for immediate tasks")
	}
}

func TestRoundTrip(t *testing.T) {
	orig := task.New("send-email", "emails", task.StateQueued,
		[]any{"alice@example.com"}, map[string]any{"subject": "hi"})

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back task.Task
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.ID.String() != orig.ID.String() {
		t.Errorf("ID = %q, want %q", back.ID.String(), orig.ID.String())
	}
	if back.Class != orig.Class || back.Queue != orig.Queue || back.Status != orig.Status {
		t.Errorf("round trip mismatch: %+v != %+v", back, orig)
	}
	if back.Kwargs["subject"] != "hi" {
		t.Errorf("Kwargs[subject] = %v, want %q", back.Kwargs["subject"], "hi")
	}
}
