// Package cache provides an in-memory LRU content cache with cost-based
// eviction, used to avoid refetching unchanged blueprint files across
// scheduling ticks.
package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultMaxSize is the default maximum memory size for the content cache (64 MB).
// Blueprint files are small YAML documents; 64 MB holds tens of thousands.
const DefaultMaxSize = 64 * 1024 * 1024

// bytesPerKB is the number of bytes in a kilobyte.
const bytesPerKB = 1024.0

// ContentCache is an LRU cache for immutable fetched content, keyed by
// caller-chosen strings. It tracks memory usage and evicts least recently
// used entries when the limit is exceeded, preferring to evict large,
// rarely-accessed items first.
type ContentCache struct {
	mu          sync.Mutex
	entries     map[string]*lruEntry
	head        *lruEntry // Most recently used.
	tail        *lruEntry // Least recently used.
	maxSize     int64
	currentSize int64

	// Metrics (atomic for lock-free reads).
	hits   atomic.Int64
	misses atomic.Int64
}

// lruEntry is a doubly-linked list node for LRU tracking.
type lruEntry struct {
	key         string
	data        []byte
	size        int64
	accessCount int64
	prev        *lruEntry
	next        *lruEntry
}

// evictionCost calculates the cost of evicting this entry.
// Higher cost = less desirable to evict.
// Cost = AccessCount / Size (normalized); large, rarely-accessed items go first.
func (e *lruEntry) evictionCost() float64 {
	if e.size == 0 {
		return float64(e.accessCount)
	}

	sizeKB := float64(e.size) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// New creates a content cache with the specified maximum size in bytes.
// Non-positive sizes use DefaultMaxSize.
func New(maxSize int64) *ContentCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &ContentCache{
		entries: make(map[string]*lruEntry),
		maxSize: maxSize,
	}
}

// Get retrieves cached content. The second return reports whether the key
// was present. Callers must not mutate the returned slice.
func (c *ContentCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	entry.accessCount++
	c.moveToFront(entry)

	return entry.data, true
}

// Put adds content to the cache. If the cache exceeds maxSize, entries are
// evicted using size-aware eviction. The data is copied so callers may
// reuse their buffer.
func (c *ContentCache) Put(key string, data []byte) {
	size := int64(len(data))

	// Don't cache items larger than the entire cache.
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.accessCount++
		c.moveToFront(entry)

		return
	}

	for c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	if c.currentSize+size > c.maxSize {
		return
	}

	entry := &lruEntry{
		key:         key,
		data:        append([]byte(nil), data...),
		size:        size,
		accessCount: 1,
	}

	c.entries[key] = entry
	c.currentSize += size
	c.addToFront(entry)
}

// Stats returns cache performance metrics.
func (c *ContentCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// Clear removes all entries from the cache.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*lruEntry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// moveToFront moves an entry to the front of the LRU list (most recently used).
func (c *ContentCache) moveToFront(entry *lruEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

// addToFront adds an entry to the front of the LRU list.
func (c *ContentCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

// removeFromList removes an entry from the LRU list.
func (c *ContentCache) removeFromList(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}

// evictionSampleSize is the number of LRU candidates sampled for size-aware
// eviction. Sampling reduces the O(n) scan to O(k) with constant k.
const evictionSampleSize = 5

// evictLowestCost removes the entry with the lowest eviction cost from the
// LRU tail region.
func (c *ContentCache) evictLowestCost() {
	if c.tail == nil {
		return
	}

	var candidates [evictionSampleSize]*lruEntry

	count := 0
	entry := c.tail

	for entry != nil && count < evictionSampleSize {
		candidates[count] = entry
		count++
		entry = entry.prev
	}

	if count == 0 {
		return
	}

	victim := candidates[0]
	lowestCost := victim.evictionCost()

	for i := 1; i < count; i++ {
		cost := candidates[i].evictionCost()
		if cost < lowestCost {
			lowestCost = cost
			victim = candidates[i]
		}
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size
}
