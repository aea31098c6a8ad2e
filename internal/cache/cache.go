package cache

import (
	"log"
	"sync"
	"time"
)

// entry is a single cached (vector, response) pair with its position in the
// LRU list. The doubly-linked list and addToFront/moveToFront/evict
// machinery is carried over from the teacher's QueryCache
// (server/query_cache.go) — what changes is Get: instead of an O(1) hash
// lookup on an exact key, it walks the list from the most-recently-used end
// computing cosine similarity, per spec.md §4.5 ("the scan order is the
// recency order ... the first-above-threshold rule must be preserved").
type entry struct {
	vector   []float64
	response string

	prev, next *entry
}

// Config controls the semantic cache's capacity and similarity threshold.
type Config struct {
	MaxEntries int     // bounded size (spec.md §4.5 "Cache Entry" invariant)
	Threshold  float64 // τ, default 0.95
}

// DefaultConfig returns the spec's default threshold τ = 0.95 and a
// capacity of 256 entries; tests that exercise eviction pass a smaller
// MaxEntries explicitly.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		Threshold:  0.95,
	}
}

// SemanticCache is a bounded LRU store of (vector, response) pairs looked up
// by cosine similarity against a threshold, rather than by exact key
// (spec.md §4.5). All of Get, Add, Clear are mutually exclusive; embedding
// happens outside the critical section (spec.md §5) and only the resulting
// vector is inserted under the lock.
type SemanticCache struct {
	embedder Embedder
	cfg      Config

	mu    sync.Mutex
	head  *entry // most-recently-used
	tail  *entry // least-recently-used
	size  int
	stats Stats
}

// Stats mirrors the teacher's CacheStats shape (server/query_cache.go),
// retargeted from query-cache hit/miss counters to semantic-cache ones.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// New builds a semantic cache using embedder for both Get and Add.
func New(embedder Embedder, cfg Config) *SemanticCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 256
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.95
	}
	return &SemanticCache{embedder: embedder, cfg: cfg}
}

// Get returns the response associated with the first entry (scanned
// most-recent first) whose cosine similarity to embed(text) is >= τ. On a
// hit the entry is promoted to most-recently-used.
func (c *SemanticCache) Get(text string) (string, bool) {
	v, err := c.embedder.Embed(text)
	if err != nil {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.head; e != nil; e = e.next {
		if CosineSimilarity(v, e.vector) >= c.cfg.Threshold {
			c.moveToFrontLocked(e)
			c.stats.Hits++
			return e.response, true
		}
	}
	c.stats.Misses++
	return "", false
}

// Add inserts (embed(text), response) as most-recently-used, evicting the
// least-recently-used entry if the cache is already at capacity. Duplicate
// vectors are never de-duplicated (spec.md §4.5): cosine similarity matches
// them on the next Get regardless. It reports whether an eviction occurred,
// so callers can mirror it into an external counter.
func (c *SemanticCache) Add(text, response string) (evicted bool) {
	v, err := c.embedder.Embed(text)
	if err != nil {
		log.Printf("[cache] embedding failed, skipping insert: %v", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{vector: v, response: response}
	c.addToFrontLocked(e)
	c.size++

	if c.size > c.cfg.MaxEntries {
		c.evictLRULocked()
		return true
	}
	return false
}

// Clear empties the cache.
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head, c.tail, c.size = nil, nil, 0
	log.Printf("[cache] cleared")
}

// GetStats returns a snapshot of cache hit/miss/eviction counters.
func (c *SemanticCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the current number of cached entries.
func (c *SemanticCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *SemanticCache) addToFrontLocked(e *entry) {
	if c.head == nil {
		c.head = e
		c.tail = e
		return
	}
	e.next = c.head
	c.head.prev = e
	c.head = e
}

func (c *SemanticCache) removeLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
	c.size--
}

func (c *SemanticCache) moveToFrontLocked(e *entry) {
	if c.head == e {
		return
	}
	c.removeLocked(e) // decrements size
	c.addToFrontLocked(e)
	c.size++ // restore the count removeLocked subtracted
}

func (c *SemanticCache) evictLRULocked() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	c.removeLocked(victim)
	c.stats.Evictions++
}
