// Package pagecache provides a byte-budget LRU cache for fully rendered
// pages. Recency is tracked with a move-to-front list; eviction runs inside
// the mutating call's critical section so the size invariant holds the
// moment Put returns.
package pagecache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/telemetry"
)

const (
	// DefaultMaxBytes is the default page cache budget (100 MiB).
	DefaultMaxBytes = 100 * 1024 * 1024

	// DefaultMaxPages caps the entry count independently of the byte budget.
	DefaultMaxPages = 50
)

// Config holds page cache configuration.
type Config struct {
	// MaxBytes is the byte budget for all cached pages. Default: 100 MiB.
	MaxBytes int64

	// MaxPages caps the number of cached pages. Default: 50.
	MaxPages int
}

// Cache is a url-keyed LRU store for rendered pages.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	maxPages   int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
	totalBytes int64
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Pages      int     `json:"pages"`
	TotalBytes int64   `json:"total_bytes"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a page cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Cache{
		maxBytes: cfg.MaxBytes,
		maxPages: cfg.MaxPages,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Put stores a rendered page under its url, evicting least-recently-used
// pages first until the new entry fits within the byte budget and the page
// cap. Replacing an existing url releases the old entry's bytes before the
// budget check.
func (c *Cache) Put(url string, html []byte, resources map[string][]byte) {
	size := instantnav.PageSize(html, resources)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[url]; ok {
		c.removeLocked(elem)
	}

	for (c.totalBytes+size > c.maxBytes || c.order.Len() >= c.maxPages) && c.order.Len() > 0 {
		c.evictOldestLocked()
	}

	page := &instantnav.CachedPage{
		URL:       url,
		HTML:      html,
		Resources: resources,
		Size:      size,
		CachedAt:  c.now(),
	}
	c.entries[url] = c.order.PushFront(page)
	c.totalBytes += size

	telemetry.UpdateCacheState("page", c.totalBytes, c.order.Len())
}

// Get returns the cached page for url, moving it to the most-recently-used
// position. An absent url is a normal miss, not an error.
func (c *Cache) Get(url string) (*instantnav.CachedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[url]
	if !ok {
		c.misses++
		telemetry.RecordCacheLookup("page", false)
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	telemetry.RecordCacheLookup("page", true)
	return elem.Value.(*instantnav.CachedPage), true
}

// Contains reports whether url is cached without touching recency or
// hit/miss counters.
func (c *Cache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// Remove evicts the page for url, if present.
func (c *Cache) Remove(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[url]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	telemetry.UpdateCacheState("page", c.totalBytes, c.order.Len())
	return true
}

// Clear drops all cached pages. Hit/miss counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.totalBytes = 0
	telemetry.UpdateCacheState("page", 0, 0)
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TotalBytes returns the tracked size of all cached pages.
func (c *Cache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Pages:      c.order.Len(),
		TotalBytes: c.totalBytes,
		Hits:       c.hits,
		Misses:     c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictOldestLocked removes the least-recently-used page.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	size := elem.Value.(*instantnav.CachedPage).Size
	c.removeLocked(elem)
	telemetry.RecordCacheEviction("page", size)
}

// removeLocked unlinks an entry and releases its bytes.
// Caller must hold c.mu.
func (c *Cache) removeLocked(elem *list.Element) {
	page := c.order.Remove(elem).(*instantnav.CachedPage)
	delete(c.entries, page.URL)
	c.totalBytes -= page.Size
	if c.totalBytes < 0 {
		panic(fmt.Sprintf("pagecache: negative total bytes after removing %s", page.URL))
	}
}
