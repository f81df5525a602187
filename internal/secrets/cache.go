package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FetchFunc retrieves a secret value from the backing secret manager
type FetchFunc func(ctx context.Context, name string) (string, error)

// entry is one cached secret with its expiry
type entry struct {
	value   string
	expires time.Time
}

// Cache is a fetch-through TTL cache for secrets and tokens. Expired
// entries are re-fetched on access.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	fetch   FetchFunc
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a secret cache with the given fetch function and TTL
func NewCache(fetch FetchFunc, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		fetch:   fetch,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the cache's clock (for testing only)
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cached value for name, fetching it if missing or expired
func (c *Cache) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[name]; ok && c.now().Before(e.expires) {
		return e.value, nil
	}

	if c.fetch == nil {
		return "", fmt.Errorf("secret %q not cached and no fetcher configured", name)
	}

	value, err := c.fetch(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret %q: %w", name, err)
	}

	c.entries[name] = entry{value: value, expires: c.now().Add(c.ttl)}
	return value, nil
}

// Set stores a value directly, bypassing the fetcher
func (c *Cache) Set(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{value: value, expires: c.now().Add(c.ttl)}
}

// Invalidate drops a cached entry
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}
