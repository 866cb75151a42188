// Package artifact memoizes the read-only inputs of a run: feature tables and
// trained models. Entries are keyed by source path, filled on first access
// and never invalidated.
package artifact

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for key.
type LoadFunc[T any] func(key string) (T, error)

// Cache is a concurrency-safe memo of LoadFunc results. Concurrent first
// loads of one key share a single call; failed loads are not stored, so the
// next access retries.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	group   singleflight.Group
	load    LoadFunc[T]

	// OnHit and OnMiss observe lookups; either may be nil.
	OnHit  func(key string)
	OnMiss func(key string)
}

// NewCache returns an empty cache backed by load.
func NewCache[T any](load LoadFunc[T]) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]T),
		load:    load,
	}
}

// Get returns the memoized value for key, loading it on first access.
func (c *Cache[T]) Get(key string) (T, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if c.OnHit != nil {
			c.OnHit(key)
		}
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		if c.OnMiss != nil {
			c.OnMiss(key)
		}
		v, err := c.load(key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Len returns the number of memoized entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
