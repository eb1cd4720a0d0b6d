// Package theinecache implements cache.Cache on top of theine, a
// W-TinyLFU cache with expiration.
package theinecache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Yiling-J/theine-go"

	"github.com/robuust/reverserelations/pkg/cache"
)

// Cache is a theine backed cache with hit/miss accounting
type Cache[K comparable, V any] struct {
	store  *theine.Cache[K, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ cache.Cache[string, int] = (*Cache[string, int])(nil)

// New creates a cache holding at most maxEntries entries
func New[K comparable, V any](maxEntries int64) (*Cache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxEntries)
	}

	store, err := theine.NewBuilder[K, V](maxEntries).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}

	return &Cache[K, V]{store: store}, nil
}

// Get retrieves a value from cache.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value with a cost of one entry. A zero ttl never expires.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) bool {
	if ttl <= 0 {
		return c.store.Set(key, value, 1)
	}
	return c.store.SetWithTTL(key, value, 1, ttl)
}

// Close stops the cache maintenance goroutines.
func (c *Cache[K, V]) Close() {
	c.store.Close()
}

// Metrics returns cache statistics.
func (c *Cache[K, V]) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
