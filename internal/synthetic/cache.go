package synthetic

import (
	"sync"
	"time"
)

// LatestCache holds the most recent result per check for fast lookup.
// Each check name is written at most once per run, so last-writer-wins
// semantics are sufficient.
type LatestCache interface {
	Set(result Result)
	Get(name string) (Result, bool)
	All() []Result
}

// cachedResult is one entry with its expiry
type cachedResult struct {
	result  Result
	expires time.Time
}

// MemoryCache is a thread-safe in-memory TTL cache of latest results
type MemoryCache struct {
	mu      sync.RWMutex
	results map[string]cachedResult
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a latest-result cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		results: make(map[string]cachedResult),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set stores the latest result for a check
func (c *MemoryCache) Set(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[result.Name] = cachedResult{
		result:  result,
		expires: c.now().Add(c.ttl),
	}
}

// Get retrieves the latest unexpired result for a check
func (c *MemoryCache) Get(name string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.results[name]
	if !exists || c.now().After(entry.expires) {
		return Result{}, false
	}
	return entry.result, true
}

// All returns every unexpired cached result
func (c *MemoryCache) All() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	results := make([]Result, 0, len(c.results))
	for _, entry := range c.results {
		if now.After(entry.expires) {
			continue
		}
		results = append(results, entry.result)
	}
	return results
}
