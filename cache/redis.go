package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-backoffice/logger"
	"crm-backoffice/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisEntry struct {
	Profile models.Profile `json:"profile"`
	At      time.Time      `json:"at"`
}

// RedisCache shares the profile cache across instances. Keys expire with
// the freshness window, so a hit is always fresh.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "crm:profile:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.Profile, bool) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn(ctx, "[CACHE] redis get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return nil, false
	}
	return &e.Profile, time.Since(e.At) < c.ttl
}

func (c *RedisCache) Put(ctx context.Context, key string, profile *models.Profile, at time.Time) {
	if profile == nil {
		return
	}
	remaining := c.ttl - time.Since(at)
	if remaining <= 0 {
		return
	}
	b, err := json.Marshal(redisEntry{Profile: *profile, At: at})
	if err != nil {
		logger.Warn(ctx, "[CACHE] encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, b, remaining).Err(); err != nil {
		logger.Warn(ctx, "[CACHE] redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		logger.Warn(ctx, "[CACHE] redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 30 * time.Second
	opts.WriteTimeout = 30 * time.Second

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return rdb, nil
}
