// internal/cache/cache.go
package cache

import (
	"sync"
	"time"
)

// entry is one memoized result. Expired entries stay in the map until
// CleanExpired runs; Get simply refuses to return them.
type entry[T any] struct {
	data      T
	cachedAt  time.Time
	expiresAt time.Time
}

// Stats summarizes cache contents for observability.
type Stats struct {
	Size   int       `json:"size"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

// Cache is a URL-keyed TTL memoization of fetched/parsed results. Keys are
// exact URL strings, not canonicalized. Safe for sequential use within a
// pipeline run; the mutex only guards against accidental cross-goroutine use.
type Cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[T]
	now     func() time.Time
}

func New[T any](ttl time.Duration) *Cache[T] {
	return NewWithClock[T](ttl, time.Now)
}

// NewWithClock injects the clock so tests can step time past the TTL.
func NewWithClock[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		now:     now,
	}
}

// Get returns the cached data for url. A lookup past the entry's expiry is a
// miss, never stale data.
func (c *Cache[T]) Get(url string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.data, true
}

func (c *Cache[T]) Put(url string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[url] = entry[T]{data: data, cachedAt: now, expiresAt: now.Add(c.ttl)}
}

func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// CleanExpired removes entries past their expiry and returns how many were
// dropped.
func (c *Cache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for url, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, url)
			removed++
		}
	}
	return removed
}

func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Size: len(c.entries)}
	for _, e := range c.entries {
		if s.Oldest.IsZero() || e.cachedAt.Before(s.Oldest) {
			s.Oldest = e.cachedAt
		}
		if e.cachedAt.After(s.Newest) {
			s.Newest = e.cachedAt
		}
	}
	return s
}
