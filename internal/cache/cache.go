// Package cache provides the explicit, bounded cache used to memoize fitted
// trend models across backtest units.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

// Cache is a size-bounded LRU cache safe for concurrent use. Entries are
// dropped explicitly via Invalidate when the data they were derived from
// changes; there is no ambient expiry.
type Cache[K comparable, V any] struct {
	lru    *lru.Cache[K, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// New creates a cache holding at most size entries.
func New[K comparable, V any](size int) (*Cache[K, V], error) {
	l, err := lru.New[K, V](size)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: create lru of size %d", size)
	}
	return &Cache[K, V]{lru: l}, nil
}

// Get returns the cached value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores value under key, evicting the least recently used entry if full.
func (c *Cache[K, V]) Add(key K, value V) {
	c.lru.Add(key, value)
}

// GetOrCompute returns the cached value or computes, stores, and returns it.
// Errors are not cached. Two concurrent misses may both compute; compute must
// therefore be pure.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.lru.Add(key, v)
	return v, false, nil
}

// Invalidate removes every entry whose key matches the predicate and returns
// the number removed.
func (c *Cache[K, V]) Invalidate(match func(K) bool) int {
	removed := 0
	for _, k := range c.lru.Keys() {
		if match(k) && c.lru.Remove(k) {
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Stats returns hit/miss counters and the current size.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.lru.Len(),
	}
}
