package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	metro "github.com/ricardo-agz/metro"
)

// acquireRetryInterval is how long AcquireLock waits between attempts.
const acquireRetryInterval = 100 * time.Millisecond

// releaseScript deletes the lock key only if it still holds the caller's
// token, so a slow holder cannot release a lock that expired and was
// re-acquired by someone else.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// AcquireLock takes the named lock with SET NX EX, retrying every 100ms
// until wait elapses. The lock TTL equals wait, so an abandoned lock frees
// itself after at most one full acquisition window.
func (s *Store) AcquireLock(ctx context.Context, name string, wait time.Duration) (string, bool, error) {
	key := lockKey(name)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for time.Now().Before(deadline) {
		ok, err := s.client.SetNX(ctx, key, token, wait).Result()
		if err != nil {
			return "", false, fmt.Errorf("metro/redis: acquire lock %q: %w", name, err)
		}
		if ok {
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
	res, err := releaseScript.Run(ctx, s.client, []string{lockKey(name)}, token).Int()
	if err != nil {
		return fmt.Errorf("metro/redis: release lock %q: %w", name, err)
	}
	if res == 0 {
		return metro.ErrLockNotHeld
	}
	return nil
}
