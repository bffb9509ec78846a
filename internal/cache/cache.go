package cache

import (
	"context"
	"sync"
	"time"

	"github.com/glasscast/glasscast/internal/models"
)

// Cache memoizes current conditions by coordinate key.
// Get returns cached data if present and not expired, Set stores data with TTL,
// Clear drops every entry unconditionally (explicit operator action only).
type Cache interface {
	Get(ctx context.Context, key string) (models.CurrentConditions, bool, error)
	Set(ctx context.Context, key string, value models.CurrentConditions, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// InMemoryCache implements Cache using an in-memory map. Staleness is judged
// solely by wall-clock delta at read time; there is no background eviction.
// Stale entries stay in the map until overwritten or the cache is cleared.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	value     models.CurrentConditions
	fetchedAt time.Time
	ttl       time.Duration
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]entry),
	}
}

// Get retrieves cached conditions for the key if present and within TTL.
// Returns (data, true, nil) on hit, (zero, false, nil) on miss or stale entry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.CurrentConditions, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.CurrentConditions{}, false, nil
	}
	if time.Since(e.fetchedAt) >= e.ttl {
		return models.CurrentConditions{}, false, nil
	}
	return e.value, true, nil
}

// Set stores conditions under key, overwriting any prior entry.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.CurrentConditions, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = entry{
		value:     value,
		fetchedAt: time.Now(),
		ttl:       ttl,
	}
	c.mu.Unlock()
	return nil
}

// Clear drops all entries.
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.mu.Unlock()
	return nil
}
