package metro

import "errors"

var (
	// Backend errors.
	ErrNoBackend     = errors.New("metro: no backend configured")
	ErrBackendClosed = errors.New("metro: backend closed")

	// Not found errors.
	ErrUnknownJob     = errors.New("metro: unknown job class")
	ErrStatusNotFound = errors.New("metro: task status not found")

	// Registration errors.
	ErrDuplicateJob = errors.New("metro: job class already registered")
	ErrInvalidJob   = errors.New("metro: invalid job class")

	// Batch errors.
	ErrNotBatchable = errors.New("metro: job class is not configured for batching")

	// Lock errors. A failed acquisition is reported via the acquired
	// return value, not an error; ErrLockNotHeld covers releases with a
	// token the lock no longer holds.
	ErrLockNotHeld = errors.New("metro: lock not held by this token")
)
