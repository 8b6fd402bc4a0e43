// Package prerender provides a bounded pool of in-flight speculative
// navigations. A slot is filled by the shell's fetch layer, marked ready,
// and promoted (moved, never copied) into the page cache on a matching
// navigation.
package prerender

import (
	"sync"
	"time"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/telemetry"
)

// DefaultCapacity is the default number of concurrent speculations.
const DefaultCapacity = 1

// Pool is a bounded set of speculative navigation slots. On overflow the
// slot with the oldest start time is evicted, so starting a new speculation
// always succeeds when the pool is full.
type Pool struct {
	mu       sync.Mutex
	capacity int
	slots    map[string]*instantnav.PrerenderSlot
	now      func() time.Time
}

// New creates a pool with the given capacity. Capacity below 1 uses
// DefaultCapacity.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		slots:    make(map[string]*instantnav.PrerenderSlot),
		now:      time.Now,
	}
}

// Start opens a slot for url. It returns false if url is already being
// prerendered. When the pool is full, the oldest slot is evicted first.
func (p *Pool) Start(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.slots[url]; ok {
		return false
	}

	for len(p.slots) >= p.capacity {
		p.evictOldestLocked()
	}

	p.slots[url] = &instantnav.PrerenderSlot{
		URL:       url,
		StartedAt: p.now(),
	}
	telemetry.RecordPrerenderStart()
	return true
}

// MarkReady attaches the fetched content to the slot for url and flags it
// ready for promotion. Returns false if url is not being prerendered
// (e.g. the slot was evicted while the fetch was in flight).
func (p *Pool) MarkReady(url string, html []byte, resources map[string][]byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[url]
	if !ok {
		return false
	}
	slot.HTML = html
	slot.Resources = resources
	slot.Ready = true
	return true
}

// IsReady reports whether url has a completed prerender waiting. An unknown
// url returns false: not prerendering and not ready is the default state.
func (p *Pool) IsReady(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[url]
	return ok && slot.Ready
}

// Take removes and returns the slot for url, transferring ownership of its
// content to the caller. Used for promotion into the page cache.
func (p *Pool) Take(url string) (*instantnav.PrerenderSlot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[url]
	if !ok {
		return nil, false
	}
	delete(p.slots, url)
	return slot, true
}

// Clear drops all slots, in-flight or ready.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = make(map[string]*instantnav.PrerenderSlot)
}

// Len returns the number of occupied slots.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// evictOldestLocked removes the slot with the oldest StartedAt.
// Caller must hold p.mu.
func (p *Pool) evictOldestLocked() {
	var oldest *instantnav.PrerenderSlot
	for _, slot := range p.slots {
		if oldest == nil || slot.StartedAt.Before(oldest.StartedAt) {
			oldest = slot
		}
	}
	if oldest == nil {
		return
	}
	delete(p.slots, oldest.URL)
	telemetry.RecordPrerenderEviction()
}
