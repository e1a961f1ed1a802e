// Package cache provides a generic thread-safe in-memory read-through cache.
package cache

import "sync"

// Cache is a thread-safe generic read-through cache.
//
// It is intended for read-mostly lookups that are expensive to fill
// (remote API identifiers and the like). Concurrent first fills are
// tolerated rather than deduplicated: redundant fills converge to the
// same value, so correctness does not depend on exactly-once fill.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// New creates a new cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves a value by key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.data[key]
	return val, ok
}

// Set stores a value by key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// GetOrFill returns the cached value for key, calling fill to produce it
// on a miss. The fill runs outside the lock, so two concurrent callers
// may both fill; the last write wins.
func (c *Cache[K, V]) GetOrFill(key K, fill func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fill()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// SetBatch stores multiple key-value pairs at once.
func (c *Cache[K, V]) SetBatch(items map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range items {
		c.data[k] = v
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
