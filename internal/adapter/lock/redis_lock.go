package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/core/domain"
)

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock only when it still holds our token, so a
// release after TTL expiry (or of a lock re-acquired by someone else) is a
// no-op rather than a theft.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker provides per-key mutual exclusion with TTL-based crash safety.
type RedisLocker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger}
}

// Run acquires the lock on key, executes body, and releases the lock. When
// the key is held, acquisition is retried every pollInterval until
// waitTimeout elapses, after which the call fails wrapping
// domain.ErrLockNotAcquired.
func (l *RedisLocker) Run(ctx context.Context, key string, ttl, waitTimeout, pollInterval time.Duration, body func(ctx context.Context) error) error {
	token := uuid.NewString()
	redisKey := lockKeyPrefix + key

	deadline := time.Now().Add(waitTimeout)
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("could not acquire lock: %s: %w", key, domain.ErrLockNotAcquired)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	defer l.release(redisKey, token)

	return body(ctx)
}

func (l *RedisLocker) release(redisKey, token string) {
	// Release must run even when the caller's context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
		// TTL will reclaim the lock; losing a release is not fatal.
		l.logger.Warn("lock release failed", zap.String("key", redisKey), zap.Error(err))
	}
}
