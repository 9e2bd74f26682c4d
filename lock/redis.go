package lock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"crm-backoffice/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deletes the key only if it still holds our token.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
// The TTL bounds how long a crashed holder can block a key.
type RedisLocker struct {
	client        *redis.Client
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		prefix:        "crm:lock:",
		ttl:           ttl,
		retryInterval: 100 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLocked, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// The caller's ctx may already be cancelled; release regardless.
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := l.client.Eval(releaseCtx, unlockScript, []string{redisKey}, token).Err(); err != nil {
						logger.Warn(releaseCtx, "[LOCK] release failed", zap.String("key", key), zap.Error(err))
					}
				})
			}, nil
		}

		// Jitter keeps waiters from hitting Redis in lockstep.
		sleep := l.retryInterval + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLocked, key, ctx.Err())
		case <-time.After(sleep):
		}
	}
}
