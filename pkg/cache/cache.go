// Package cache defines the in-process cache used in front of read-mostly
// repositories.
package cache

import (
	"time"
)

// Cache is a bounded key/value cache with per-entry TTL.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from cache.
	// Returns the value and true if found and not expired.
	Get(key K) (V, bool)

	// Set stores a value in cache with TTL.
	// Returns false when the cache rejected the entry.
	Set(key K, value V, ttl time.Duration) bool

	// Close releases resources held by the cache.
	Close()

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	// Hits is the number of cache hits
	Hits uint64

	// Misses is the number of cache misses
	Misses uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
