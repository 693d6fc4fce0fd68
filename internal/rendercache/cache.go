// Package rendercache provides a content-addressed LRU cache for compiled
// render outputs.
//
// Entries are keyed by a hash of (source, backend, view) so a repeat of an
// identical request never re-invokes the compute unit. The cache has no
// TTL; entries stay valid until evicted by capacity pressure or an explicit
// Clear.
package rendercache

import (
	"sync"
	"time"

	"github.com/fred913/scadstudio/internal/diag"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
// Render outputs can be large meshes, so the bound is deliberately small.
const DefaultCapacity = 50

// OutputKind identifies what the cached bytes are.
type OutputKind string

const (
	// KindMesh is a 3D mesh artifact (STL and friends).
	KindMesh OutputKind = "mesh"
	// KindSVG is a 2D vector artifact.
	KindSVG OutputKind = "svg"
)

// Entry is one cached render result, including the diagnostics that the
// compute run produced. Failed compiles are cached too: re-rendering
// byte-identical broken source would fail identically.
type Entry struct {
	Output      []byte
	Kind        OutputKind
	Diagnostics []diag.Diagnostic
	Timestamp   time.Time

	// seq breaks timestamp ties deterministically (insertion order).
	// Wall clocks are too coarse to order rapid consecutive inserts.
	seq int64
}

// Cache is a fixed-capacity content-addressed store.
//
// Thread-safety: all methods are safe for concurrent use. The orchestration
// layer may be driven from multiple goroutines even though each individual
// caller behaves cooperatively.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	capacity int
	seq      int64
	now      func() time.Time
}

// New creates a cache bounded at capacity entries. A capacity below 1
// falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the entry for key, or nil if absent.
func (c *Cache) Get(key string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Set inserts or replaces the entry for key. If the cache is at capacity
// and key is not already present, the oldest entry (smallest timestamp,
// insertion order on ties) is evicted first.
func (c *Cache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.seq++
	e.seq = c.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	c.entries[key] = &e
}

// evictOldestLocked removes the entry with the smallest timestamp.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest *Entry
	for k, e := range c.entries {
		if oldest == nil || e.Timestamp.Before(oldest.Timestamp) ||
			(e.Timestamp.Equal(oldest.Timestamp) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
