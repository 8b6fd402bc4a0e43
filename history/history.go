// Package history provides the back/forward navigation stack. It is pure
// url sequencing: it holds no cache content, and consumers check the page
// cache for a returned url to decide whether the navigation can be instant.
package history

import "sync"

// History is an ordered sequence of visited urls with a position cursor.
// The cursor is always in [-1, len(entries)-1]; -1 means nothing visited.
type History struct {
	mu      sync.RWMutex
	entries []string
	pos     int
}

// New creates an empty history.
func New() *History {
	return &History{pos: -1}
}

// Visit commits a navigation to url. Visiting from a back-state discards
// every entry after the cursor (branch truncation) before appending, then
// advances the cursor to the new tail.
func (h *History) Visit(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos < len(h.entries)-1 {
		h.entries = h.entries[:h.pos+1]
	}
	h.entries = append(h.entries, url)
	h.pos = len(h.entries) - 1
}

// CanGoBack reports whether a Back call would move the cursor.
func (h *History) CanGoBack() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pos > 0
}

// CanGoForward reports whether a Forward call would move the cursor.
func (h *History) CanGoForward() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pos < len(h.entries)-1
}

// Back moves the cursor back one entry and returns the url there. At the
// start of the history it returns false and leaves the cursor unchanged.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos <= 0 {
		return "", false
	}
	h.pos--
	return h.entries[h.pos], true
}

// Forward moves the cursor forward one entry and returns the url there. At
// the tail it returns false and leaves the cursor unchanged.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos >= len(h.entries)-1 {
		return "", false
	}
	h.pos++
	return h.entries[h.pos], true
}

// Current returns the url at the cursor, or false if nothing was visited.
func (h *History) Current() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.pos < 0 {
		return "", false
	}
	return h.entries[h.pos], true
}

// Entries returns a copy of the visited sequence, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops all entries and resets the cursor.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.pos = -1
}
