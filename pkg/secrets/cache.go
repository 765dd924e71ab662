package secrets

import (
	"context"
	"sync"
	"time"
)

type cacheItem[T any] struct {
	value      T
	expiration time.Time
}

// Cache is a thread-safe TTL cache. A zero or negative TTL disables expiry.
// Every Bust advances a generation counter; a GetOrLoad whose load started
// before the bust does not store its result.
type Cache[T any] struct {
	mu   sync.RWMutex
	data map[string]cacheItem[T]
	gen  uint64
	ttl  time.Duration
	now  func() time.Time
}

// NewCache creates a new TTL-based in-memory cache.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		data: make(map[string]cacheItem[T]),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *Cache[T]) expired(item cacheItem[T], at time.Time) bool {
	return c.ttl > 0 && at.After(item.expiration)
}

// Get returns a cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if c.expired(item, c.now()) {
		c.Bust(key)
		return zero, false
	}
	return item.value, true
}

// Put inserts or overwrites a cache entry.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheItem[T]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result unless the key was busted while load ran. Load errors
// are returned and nothing is cached.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.data[key] = cacheItem[T]{value: v, expiration: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return v, false, nil
}

// Bust deletes a single entry and discards loads already in flight.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.gen++
	c.mu.Unlock()
}
