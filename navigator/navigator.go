// Package navigator composes the caching stores into the operations the
// browser shell calls on navigation events. The shell asks a Coordinator
// "do I have this instantly?" before issuing a network fetch, hands it
// fetched artifacts to cache, and routes tab deactivation through the
// compressed snapshot store.
//
// Each store is an independently lock-guarded resource; the Coordinator
// never holds two store locks at once, so unrelated operations do not
// serialize against each other.
package navigator

import (
	"context"
	"encoding/json"
	"log/slog"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/history"
	"github.com/wolfeidau/instant-nav/snapshot"
	"github.com/wolfeidau/instant-nav/store/pagecache"
	"github.com/wolfeidau/instant-nav/store/prerender"
	"github.com/wolfeidau/instant-nav/store/resourcecache"
	"github.com/wolfeidau/instant-nav/telemetry"
	"github.com/wolfeidau/instant-nav/turbo"
)

// Config holds coordinator configuration. Zero values fall back to each
// store's defaults.
type Config struct {
	// PageCacheMaxBytes is the rendered-page budget. Default: 100 MiB.
	PageCacheMaxBytes int64

	// PageCacheMaxPages caps the rendered-page count. Default: 50.
	PageCacheMaxPages int

	// ResourceCacheMaxBytes is the raw sub-resource budget. Default: 50 MiB.
	ResourceCacheMaxBytes int64

	// PrerenderSlots is the number of concurrent speculations. Default: 1.
	PrerenderSlots int

	// DefaultTier is the initial content-blocking tier. Default: off.
	DefaultTier turbo.Tier

	// CompressionLevel is the snapshot zstd level (1-9). Default: 3.
	CompressionLevel int

	// SnapshotPath is an optional bbolt file for persisting deactivated
	// tabs. Empty means memory only.
	SnapshotPath string

	// Logger for coordinator events.
	Logger *slog.Logger
}

// Coordinator owns the page cache, resource cache, prerender pool,
// navigation history, snapshot store and blocking engine for one
// browser-shell session. Construct one per session; there is no ambient
// process-wide instance.
type Coordinator struct {
	pages     *pagecache.Cache
	resources *resourcecache.Cache
	pool      *prerender.Pool
	history   *history.History
	snapshots *snapshot.Store
	engine    *turbo.Engine
	logger    *slog.Logger
}

// Stats aggregates per-store statistics for the diagnostics surface.
type Stats struct {
	Pages     pagecache.Stats     `json:"pages"`
	Resources resourcecache.Stats `json:"resources"`
	Prerender int                 `json:"prerender_slots"`
	History   int                 `json:"history_entries"`
	Snapshots snapshot.Stats      `json:"snapshots"`
	Blocks    turbo.BlockStats    `json:"blocks"`
}

// New creates a coordinator with the given configuration.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	snapshots, err := snapshot.NewStore(snapshot.Config{
		Level:  cfg.CompressionLevel,
		Path:   cfg.SnapshotPath,
		Logger: cfg.Logger.With("component", "snapshot"),
	})
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		pages: pagecache.New(pagecache.Config{
			MaxBytes: cfg.PageCacheMaxBytes,
			MaxPages: cfg.PageCacheMaxPages,
		}),
		resources: resourcecache.New(resourcecache.Config{
			MaxBytes: cfg.ResourceCacheMaxBytes,
		}),
		pool:      prerender.New(cfg.PrerenderSlots),
		history:   history.New(),
		snapshots: snapshots,
		engine: turbo.NewEngine(turbo.Config{
			Tier:   cfg.DefaultTier,
			Logger: cfg.Logger.With("component", "turbo"),
		}),
		logger: cfg.Logger,
	}, nil
}

// Close releases the snapshot store's codec and database resources.
func (c *Coordinator) Close() error {
	return c.snapshots.Close()
}

// Lookup answers "do I have this url instantly?". It checks the page cache
// first; on a miss, a ready prerender slot is promoted into the page cache
// (content moved, never copied) and returned as a hit.
func (c *Coordinator) Lookup(url string) (*instantnav.CachedPage, bool) {
	if page, ok := c.pages.Get(url); ok {
		return page, true
	}

	if !c.pool.IsReady(url) {
		return nil, false
	}

	slot, ok := c.pool.Take(url)
	if !ok || !slot.Ready {
		// Lost a race with another promotion or an eviction.
		return nil, false
	}

	c.pages.Put(url, slot.HTML, slot.Resources)
	telemetry.RecordPrerenderPromotion()
	c.logger.Debug("promoted prerender", "url", url)

	page, ok := c.pages.Get(url)
	return page, ok
}

// StorePage caches a fetched page after load completion.
func (c *Coordinator) StorePage(url string, html []byte, resources map[string][]byte) {
	c.pages.Put(url, html, resources)
}

// StoreResource caches a raw sub-resource after load completion.
func (c *Coordinator) StoreResource(url string, data []byte) {
	c.resources.Put(url, data)
}

// Resource returns a cached sub-resource, if present.
func (c *Coordinator) Resource(url string) ([]byte, bool) {
	return c.resources.Get(url)
}

// Prerender opens a speculation slot for url. It reports false when url is
// already being prerendered or is already in the page cache.
func (c *Coordinator) Prerender(url string) bool {
	if c.pages.Contains(url) {
		return false
	}
	return c.pool.Start(url)
}

// CompletePrerender attaches fetched content to the speculation slot for
// url. It reports false when the slot no longer exists.
func (c *Coordinator) CompletePrerender(url string, html []byte, resources map[string][]byte) bool {
	return c.pool.MarkReady(url, html, resources)
}

// PrerenderReady reports whether url has a completed prerender waiting.
func (c *Coordinator) PrerenderReady(url string) bool {
	return c.pool.IsReady(url)
}

// Navigate commits a navigation to url, truncating any forward branch.
func (c *Coordinator) Navigate(url string) {
	c.history.Visit(url)
}

// Back moves the history cursor back one entry. The shell checks the page
// cache for the returned url to decide whether the move is instant.
func (c *Coordinator) Back() (string, bool) {
	return c.history.Back()
}

// Forward moves the history cursor forward one entry.
func (c *Coordinator) Forward() (string, bool) {
	return c.history.Forward()
}

// CanGoBack reports whether Back would move the cursor.
func (c *Coordinator) CanGoBack() bool {
	return c.history.CanGoBack()
}

// CanGoForward reports whether Forward would move the cursor.
func (c *Coordinator) CanGoForward() bool {
	return c.history.CanGoForward()
}

// Current returns the url at the history cursor.
func (c *Coordinator) Current() (string, bool) {
	return c.history.Current()
}

// DeactivateTab serializes and compresses a tab's working set under its tab
// id. On failure the tab's prior snapshot, if any, is left untouched.
func (c *Coordinator) DeactivateTab(ctx context.Context, tabID string, snap *instantnav.TabSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return &snapshot.Error{Op: "serialize", ID: tabID, Err: err}
	}

	blob, err := c.snapshots.Compress(ctx, tabID, payload)
	if err != nil {
		return err
	}

	c.logger.Info("deactivated tab",
		"tab_id", tabID,
		"original_size", blob.OriginalSize,
		"compressed_size", blob.CompressedSize,
	)
	return nil
}

// ReactivateTab restores a deactivated tab's working set. An unknown tab id
// returns (nil, false, nil). The snapshot is kept until CloseTab, so a
// failed reactivation can be retried.
func (c *Coordinator) ReactivateTab(ctx context.Context, tabID string) (*instantnav.TabSnapshot, bool, error) {
	payload, ok, err := c.snapshots.Decompress(ctx, tabID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var snap instantnav.TabSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, &snapshot.Error{Op: "serialize", ID: tabID, Err: err}
	}
	return &snap, true, nil
}

// CloseTab discards the compressed snapshot for a closed tab, if any.
func (c *Coordinator) CloseTab(ctx context.Context, tabID string) (bool, error) {
	return c.snapshots.Remove(ctx, tabID)
}

// ShouldBlock asks the blocking engine whether a resource request should be
// suppressed under the active tier.
func (c *Coordinator) ShouldBlock(url string, rtype instantnav.ResourceType) bool {
	return c.engine.ShouldBlock(url, rtype)
}

// Turbo exposes the blocking engine for tier and rule management.
func (c *Coordinator) Turbo() *turbo.Engine {
	return c.engine
}

// ClearCaches drops the page cache, resource cache and prerender pool.
// History and snapshots are untouched.
func (c *Coordinator) ClearCaches() {
	c.pages.Clear()
	c.resources.Clear()
	c.pool.Clear()
}

// Stats aggregates statistics across all stores.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Pages:     c.pages.Stats(),
		Resources: c.resources.Stats(),
		Prerender: c.pool.Len(),
		History:   c.history.Len(),
		Snapshots: c.snapshots.Stats(),
		Blocks:    c.engine.Stats(),
	}
}
