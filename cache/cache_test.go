package cache

import (
	"context"
	"testing"
	"time"

	"crm-backoffice/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_FreshThenStale(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	p, fresh := c.Get(ctx, "u1")
	assert.Nil(t, p)
	assert.False(t, fresh)

	c.Put(ctx, "u1", &models.Profile{ID: "u1", Email: "a@b.co"}, now)
	p, fresh = c.Get(ctx, "u1")
	require.NotNil(t, p)
	assert.True(t, fresh)
	assert.Equal(t, "a@b.co", p.Email)

	now = now.Add(2 * time.Minute)
	p, fresh = c.Get(ctx, "u1")
	require.NotNil(t, p, "stale values are still returned")
	assert.False(t, fresh)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	c.Put(ctx, "u1", &models.Profile{ID: "u1", Email: "a@b.co"}, time.Now())

	p, _ := c.Get(ctx, "u1")
	p.Email = "mutated@b.co"

	again, _ := c.Get(ctx, "u1")
	assert.Equal(t, "a@b.co", again.Email)

	c.Delete(ctx, "u1")
	p, _ = c.Get(ctx, "u1")
	assert.Nil(t, p)
}

func TestRedisCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(rdb, time.Minute)

	c.Put(ctx, "u1", &models.Profile{ID: "u1", Email: "a@b.co", Role: models.RoleSuperAdmin}, time.Now())
	p, fresh := c.Get(ctx, "u1")
	require.NotNil(t, p)
	assert.True(t, fresh)
	assert.Equal(t, models.RoleSuperAdmin, p.Role)

	mr.FastForward(2 * time.Minute)
	p, fresh = c.Get(ctx, "u1")
	assert.Nil(t, p)
	assert.False(t, fresh)
}

func TestRedisCache_SkipsAlreadyExpiredPut(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	c.Put(ctx, "u1", &models.Profile{ID: "u1"}, time.Now().Add(-time.Hour))
	assert.False(t, mr.Exists("crm:profile:u1"))
}
