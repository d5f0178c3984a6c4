// Package cache provides the keyed memoization store shared by the
// geocoding and feature-fetching clients. Cached values are treated as
// immutable: callers must not mutate what they get back.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is the keyed store injected wherever results are memoized.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, value any)
	Invalidate(prefix string)
	Stats() Stats
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// Memory is a concurrent-safe LRU cache with TTL expiration.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type memoryEntry struct {
	value     any
	createdAt time.Time
}

// NewMemory creates a Memory cache with the given capacity and TTL.
// A zero TTL disables expiration.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get retrieves a cached value. The second return is false on miss or expiration.
func (c *Memory) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	// Check TTL.
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.value, true
}

// Put stores a value, evicting the oldest entry if at capacity.
func (c *Memory) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If key already exists, update in place and move to back.
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &memoryEntry{value: value, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	// Evict from front if at capacity.
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &memoryEntry{value: value, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Invalidate removes all cached entries whose key starts with the given prefix.
func (c *Memory) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, key := range c.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// removeFromOrder removes a key from the LRU order slice.
func (c *Memory) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Noop is a Cache that stores nothing. Tests use it to make pipeline
// runs deterministic.
type Noop struct{}

// Get always misses.
func (Noop) Get(string) (any, bool) { return nil, false }

// Put discards the value.
func (Noop) Put(string, any) {}

// Invalidate does nothing.
func (Noop) Invalidate(string) {}

// Stats returns zero statistics.
func (Noop) Stats() Stats { return Stats{} }
