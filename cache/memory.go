package cache

import (
	"context"
	"sync"
	"time"

	"crm-backoffice/models"
)

type memoryEntry struct {
	profile models.Profile
	at      time.Time
}

// MemoryCache is an in-process ProfileCache. Stale entries stay readable
// until Purge removes them.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.Profile, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	p := e.profile
	return &p, c.now().Sub(e.at) < c.ttl
}

func (c *MemoryCache) Put(_ context.Context, key string, profile *models.Profile, at time.Time) {
	if profile == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{profile: *profile, at: at}
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops stale entries and returns how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.at) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
