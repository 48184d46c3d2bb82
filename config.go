package metro

import "time"

// Config holds timing configuration for the Worker loops.
type Config struct {
	// EmptySleep is how long a queue loop sleeps after an empty dequeue.
	EmptySleep time.Duration

	// ErrorBackoff is how long a queue loop sleeps after a backend error
	// before retrying.
	ErrorBackoff time.Duration

	// PromotionInterval is how often the promotion loop moves due
	// scheduled tasks into their queues.
	PromotionInterval time.Duration

	// PromotionBackoff is how long the promotion loop sleeps after an
	// error before retrying.
	PromotionBackoff time.Duration

	// LockWait is the maximum time a batch flush waits to acquire the
	// distributed lock. It is also the lock's TTL.
	LockWait time.Duration

	// ShutdownTimeout is the maximum time to wait for loops to finish
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EmptySleep:        100 * time.Millisecond,
		ErrorBackoff:      time.Second,
		PromotionInterval: time.Second,
		PromotionBackoff:  5 * time.Second,
		LockWait:          10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}
