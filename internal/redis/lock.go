package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-holds/internal/hold"
)

// ErrLockNotAcquired matches hold.ErrLockNotAcquired under errors.Is.
var ErrLockNotAcquired = hold.ErrLockNotAcquired

const retryDelay = 25 * time.Millisecond

type redisHoldeeLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisHoldeeLocker creates a locker that uses a per holdee Redis key.
// A busy key is retried until wait elapses.
func NewRedisHoldeeLocker(client *redis.Client, ttl, wait time.Duration) hold.Locker {
	return &redisHoldeeLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(holdeeID uuid.UUID) string {
	return fmt.Sprintf("lock:holdee:%s", holdeeID.String())
}

func (l *redisHoldeeLocker) WithHoldeeLock(ctx context.Context, holdeeID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(holdeeID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	// fn must finish before the key can lapse.
	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisHoldeeLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire holdee lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisHoldeeLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release holdee lock: %w", err)
	}
	return nil
}
