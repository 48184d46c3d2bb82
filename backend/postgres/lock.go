package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	metro "github.com/ricardo-agz/metro"
)

// acquireRetryInterval is how long AcquireLock waits between attempts.
const acquireRetryInterval = 100 * time.Millisecond

// AcquireLock takes the named lock by inserting a token row, stealing the
// row when its TTL has lapsed. Retries every 100ms until wait elapses.
func (s *Store) AcquireLock(ctx context.Context, name string, wait time.Duration) (string, bool, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for time.Now().Before(deadline) {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO metro_locks (name, token, expires_at)
			VALUES ($1, $2, NOW() + make_interval(secs => $3))
			ON CONFLICT (name) DO UPDATE
				SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
				WHERE metro_locks.expires_at < NOW()`,
			name, token, wait.Seconds(),
		)
		if err != nil {
			return "", false, fmt.Errorf("metro/postgres: acquire lock %q: %w", name, err)
		}
		if tag.RowsAffected() > 0 {
			return token, true, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
	return "", false, nil
}

// ReleaseLock releases the named lock if token is still the current holder.
func (s *Store) ReleaseLock(ctx context.Context, name string, token string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM metro_locks WHERE name = $1 AND token = $2`,
		name, token,
	)
	if err != nil {
		return fmt.Errorf("metro/postgres: release lock %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return metro.ErrLockNotHeld
	}
	return nil
}
