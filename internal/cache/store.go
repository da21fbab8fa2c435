package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores run artifacts and per-SKU forecasts in Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	return payload, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s failed: %w", key, err)
	}
	return nil
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local key -> (value, expiry) store. Expired
// entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	clock   ports.Clock
	entries map[string]memoryEntry
}

func NewMemoryCache(clock ports.Clock) *MemoryCache {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &MemoryCache{clock: clock, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value. A ttl <= 0 never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// NoopCache remembers nothing.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
