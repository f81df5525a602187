package synthetic

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "vigil:check:latest:"

// RedisCache is a LatestCache backed by Redis, for deployments where
// multiple vigil instances share check results. Failures degrade to
// cache misses; the durable history in sqlite remains authoritative.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed latest-result cache
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Ping verifies connectivity to the Redis server
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set stores the latest result for a check
func (c *RedisCache) Set(result Result) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("Warning: failed to marshal check result %s: %v", result.Name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, redisKeyPrefix+result.Name, data, c.ttl).Err(); err != nil {
		log.Printf("Warning: failed to cache check result %s: %v", result.Name, err)
	}
}

// Get retrieves the latest result for a check
func (c *RedisCache) Get(name string) (Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, redisKeyPrefix+name).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Warning: failed to read cached check result %s: %v", name, err)
		}
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("Warning: failed to unmarshal cached check result %s: %v", name, err)
		return Result{}, false
	}

	return result, true
}

// All returns every cached result
func (c *RedisCache) All() []Result {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	keys, err := c.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		log.Printf("Warning: failed to list cached check results: %v", err)
		return nil
	}

	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		name := key[len(redisKeyPrefix):]
		if result, ok := c.Get(name); ok {
			results = append(results, result)
		}
	}
	return results
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
