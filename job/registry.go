package job

import (
	"fmt"
	"sort"
	"sync"

	metro "github.com/ricardo-agz/metro"
)

// Registry maps class names to job Types. It is populated by an explicit
// discovery/registration step before the Worker starts; the Worker only
// requires that every class name it dequeues resolves here. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register validates and adds a job Type. Validation fails fast at
// registration rather than at first execution: batchable classes must
// implement PerformBatch and nothing else, non-batchable classes Perform
// and nothing else, and batch parameters must be positive.
func (r *Registry) Register(t *Type) error {
	if err := validate(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %q", metro.ErrDuplicateJob, t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// MustRegister is like Register but panics on error. Use at startup where
// a bad job definition is a programming error.
func (r *Registry) MustRegister(types ...*Type) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the Type for the given class name.
// Returns false if no class is registered under that name.
func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all registered job Types.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	return out
}

// Queues returns the distinct queue names across all registered classes,
// sorted for deterministic worker startup.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.types))
	var queues []string
	for _, t := range r.types {
		if _, ok := seen[t.Queue]; ok {
			continue
		}
		seen[t.Queue] = struct{}{}
		queues = append(queues, t.Queue)
	}
	sort.Strings(queues)
	return queues
}

// Batchable returns the batchable classes assigned to the given queue.
func (r *Registry) Batchable(queue string) []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Type
	for _, t := range r.types {
		if t.Queue == queue && t.Batchable() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validate(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: empty class name", metro.ErrInvalidJob)
	}
	if t.Queue == "" {
		return fmt.Errorf("%w: %q has no queue", metro.ErrInvalidJob, t.Name)
	}
	if t.BatchSize < 0 {
		return fmt.Errorf("%w: %q batch size must be greater than 0", metro.ErrInvalidJob, t.Name)
	}
	if t.BatchInterval < 0 {
		return fmt.Errorf("%w: %q batch interval must be greater than 0", metro.ErrInvalidJob, t.Name)
	}

	if t.Batchable() {
		if t.PerformBatch == nil {
			return fmt.Errorf("%w: batchable class %q must implement PerformBatch", metro.ErrInvalidJob, t.Name)
		}
		if t.Perform != nil {
			return fmt.Errorf("%w: batchable class %q must not implement Perform", metro.ErrInvalidJob, t.Name)
		}
		return nil
	}

	if t.Perform == nil {
		return fmt.Errorf("%w: class %q must implement Perform", metro.ErrInvalidJob, t.Name)
	}
	if t.PerformBatch != nil {
		return fmt.Errorf("%w: non-batchable class %q must not implement PerformBatch", metro.ErrInvalidJob, t.Name)
	}
	return nil
}
