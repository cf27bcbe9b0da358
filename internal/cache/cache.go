// Package cache provides a TTL- and capacity-bounded map used for read-mostly
// lookups such as trust-policy resolution. The clock is injectable so tests
// can drive eviction without sleeping.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a bounded TTL map. The zero value is not usable; use New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides time.Now for testing.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates a cache holding at most capacity entries, each valid for ttl.
// A non-positive capacity defaults to 1024; a non-positive ttl defaults to
// one minute.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &Cache[K, V]{
		entries:  make(map[K]entry[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value. When the cache is full, expired entries are evicted
// first; if none are expired, the oldest entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, storedAt: now}
}

// Delete removes a key. Used to invalidate a user's cached tier after an
// override change so the writer observes its own update.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries currently held, including expired ones
// that have not yet been evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked frees one slot: all expired entries, or the oldest live one.
func (c *Cache[K, V]) evictLocked(now time.Time) {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
		freed     bool
	)
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, key)
			freed = true
			continue
		}
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, e.storedAt, true
		}
	}
	if !freed && found {
		delete(c.entries, oldestKey)
	}
}
