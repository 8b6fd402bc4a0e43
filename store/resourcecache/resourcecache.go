// Package resourcecache provides a byte-budget FIFO cache for raw
// sub-resources (images, stylesheets, scripts). Eviction is strict
// insertion order: sub-resources are cheap to refetch and recency tracking
// would not pay for itself here, unlike the page cache.
package resourcecache

import (
	"container/list"
	"fmt"
	"sync"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/telemetry"
)

// DefaultMaxBytes is the default resource cache budget (50 MiB).
const DefaultMaxBytes = 50 * 1024 * 1024

// Config holds resource cache configuration.
type Config struct {
	// MaxBytes is the byte budget for all cached resources. Default: 50 MiB.
	MaxBytes int64
}

// Cache is a url-keyed FIFO store for raw resource bytes.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	order      *list.List // front = oldest insertion
	entries    map[string]*list.Element
	totalBytes int64
	hits       uint64
	misses     uint64
	bytesSaved int64
}

// Stats is a snapshot of cache counters. BytesSaved is the refetch
// bandwidth avoided by hits, not the cache's resident size.
type Stats struct {
	Resources  int    `json:"resources"`
	TotalBytes int64  `json:"total_bytes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	BytesSaved int64  `json:"bytes_saved"`
}

// New creates a resource cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Cache{
		maxBytes: cfg.MaxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Put stores raw resource bytes under their url, evicting the oldest
// insertions first until the new entry fits within the byte budget.
// Updating an existing url keeps its original queue position.
func (c *Cache) Put(url string, data []byte) {
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[url]; ok {
		res := elem.Value.(*instantnav.CachedResource)
		c.totalBytes -= int64(len(res.Data))
		res.Data = data
		c.totalBytes += size
		c.evictWhileOverLocked()
		telemetry.UpdateCacheState("resource", c.totalBytes, c.order.Len())
		return
	}

	for c.totalBytes+size > c.maxBytes && c.order.Len() > 0 {
		c.evictOldestLocked()
	}

	c.entries[url] = c.order.PushBack(&instantnav.CachedResource{URL: url, Data: data})
	c.totalBytes += size
	telemetry.UpdateCacheState("resource", c.totalBytes, c.order.Len())
}

// Get returns the cached bytes for url. A hit adds the resource's byte
// length to the bytes-saved counter; queue position is unchanged.
func (c *Cache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[url]
	if !ok {
		c.misses++
		telemetry.RecordCacheLookup("resource", false)
		return nil, false
	}

	res := elem.Value.(*instantnav.CachedResource)
	c.hits++
	c.bytesSaved += int64(len(res.Data))
	telemetry.RecordCacheLookup("resource", true)
	telemetry.RecordResourceBytesSaved(int64(len(res.Data)))
	return res.Data, true
}

// Contains reports whether url is cached without touching counters.
func (c *Cache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// Clear drops all cached resources. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.totalBytes = 0
	telemetry.UpdateCacheState("resource", 0, 0)
}

// Len returns the number of cached resources.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TotalBytes returns the tracked size of all cached resources.
func (c *Cache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Resources:  c.order.Len(),
		TotalBytes: c.totalBytes,
		Hits:       c.hits,
		Misses:     c.misses,
		BytesSaved: c.bytesSaved,
	}
}

// evictWhileOverLocked evicts oldest insertions until under budget.
// Caller must hold c.mu.
func (c *Cache) evictWhileOverLocked() {
	for c.totalBytes > c.maxBytes && c.order.Len() > 0 {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the oldest insertion. Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	elem := c.order.Front()
	if elem == nil {
		return
	}
	res := c.order.Remove(elem).(*instantnav.CachedResource)
	delete(c.entries, res.URL)
	size := int64(len(res.Data))
	c.totalBytes -= size
	if c.totalBytes < 0 {
		panic(fmt.Sprintf("resourcecache: negative total bytes after evicting %s", res.URL))
	}
	telemetry.RecordCacheEviction("resource", size)
}
