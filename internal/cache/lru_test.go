package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/cache"
)

func TestContentCache_GetPut(t *testing.T) {
	t.Parallel()

	c := cache.New(1024) // 1KB cache.

	// Get on empty cache misses.
	_, ok := c.Get("blueprints/gss.yml@abc")
	assert.False(t, ok)

	c.Put("blueprints/gss.yml@abc", []byte("hello world"))

	got, ok := c.Get("blueprints/gss.yml@abc")
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), got)
}

func TestContentCache_LRUEviction(t *testing.T) {
	t.Parallel()

	// Cache with 100 bytes max; three 40-byte items exceed it.
	c := cache.New(100)

	c.Put("a", make([]byte, 40))
	c.Put("b", make([]byte, 40))

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	// Re-access b so a is the eviction candidate.
	c.Get("b")

	c.Put("c", make([]byte, 40))

	_, ok = c.Get("a")
	assert.False(t, ok, "a should be evicted")
	_, ok = c.Get("b")
	assert.True(t, ok, "b should still be in cache")
	_, ok = c.Get("c")
	assert.True(t, ok, "c should be in cache")
}

func TestContentCache_SkipOversizedItems(t *testing.T) {
	t.Parallel()

	c := cache.New(100)

	c.Put("big", make([]byte, 200))

	_, ok := c.Get("big")
	assert.False(t, ok)
}

func TestContentCache_PutCopiesData(t *testing.T) {
	t.Parallel()

	c := cache.New(1024)

	buf := []byte("original")
	c.Put("k", buf)
	buf[0] = 'X'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("original"), got)
}

func TestContentCache_DuplicatePutKeepsFirst(t *testing.T) {
	t.Parallel()

	c := cache.New(1024)

	c.Put("k", []byte("one"))
	c.Put("k", []byte("two"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), got)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
}

func TestContentCache_Stats(t *testing.T) {
	t.Parallel()

	c := cache.New(1024)

	c.Put("k", []byte("data"))
	c.Get("k")
	c.Get("absent")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(4), stats.CurrentSize)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestContentCache_Clear(t *testing.T) {
	t.Parallel()

	c := cache.New(1024)

	c.Put("k", []byte("data"))
	c.Clear()

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Stats().Entries)
	assert.Zero(t, c.Stats().CurrentSize)
}

func TestContentCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := cache.New(64 * 1024)

	var wg sync.WaitGroup

	for g := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 100 {
				key := fmt.Sprintf("g%d-i%d", g, i)
				c.Put(key, []byte(key))
				c.Get(key)
			}
		}()
	}

	wg.Wait()

	stats := c.Stats()
	assert.Positive(t, stats.Hits)
}

func TestContentCache_EvictionPrefersLargeColdItems(t *testing.T) {
	t.Parallel()

	c := cache.New(100)

	// A hot small item and a cold large item.
	c.Put("small", make([]byte, 10))

	for range 10 {
		c.Get("small")
	}

	c.Put("large", make([]byte, 80))

	// Forcing eviction should drop the cold large item, not the hot small one.
	c.Put("next", make([]byte, 40))

	_, ok := c.Get("small")
	assert.True(t, ok, "hot small item should survive eviction")
	_, ok = c.Get("large")
	assert.False(t, ok, "cold large item should be evicted")
}
