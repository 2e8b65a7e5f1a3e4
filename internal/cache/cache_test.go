package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := New[string](24 * time.Hour)
	c.Put("https://example.com/a", "parsed")

	got, ok := c.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "parsed", got)

	_, ok = c.Get("https://example.com/missing")
	assert.False(t, ok)
}

func TestExpiryIsAMiss(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewWithClock[int](24*time.Hour, clock)

	c.Put("u", 42)
	now = now.Add(23 * time.Hour)
	_, ok := c.Get("u")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = c.Get("u")
	assert.False(t, ok, "entry at exactly TTL must be a miss")

	// Expired entries linger until an explicit sweep.
	assert.Equal(t, 1, c.Stats().Size)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Stats().Size)
}

func TestKeysAreExactStrings(t *testing.T) {
	c := New[string](time.Hour)
	c.Put("https://example.com/a", "x")

	_, ok := c.Get("https://example.com/a/")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := New[string](time.Hour)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewWithClock[string](time.Hour, clock)

	c.Put("a", "1")
	now = now.Add(10 * time.Minute)
	c.Put("b", "2")

	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), s.Oldest)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 10, 0, 0, time.UTC), s.Newest)
}

func TestCleanExpiredKeepsLiveEntries(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewWithClock[string](time.Hour, clock)

	c.Put("old", "1")
	now = now.Add(90 * time.Minute)
	c.Put("fresh", "2")

	assert.Equal(t, 1, c.CleanExpired())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}
