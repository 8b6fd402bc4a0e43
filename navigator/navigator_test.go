package navigator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/snapshot"
	"github.com/wolfeidau/instant-nav/turbo"
)

func newCoordinator(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLookupMissThenHit(t *testing.T) {
	c := newCoordinator(t, Config{})

	_, ok := c.Lookup("https://example.com/")
	require.False(t, ok)

	c.StorePage("https://example.com/", []byte("<html>home</html>"), nil)

	page, ok := c.Lookup("https://example.com/")
	require.True(t, ok)
	require.Equal(t, []byte("<html>home</html>"), page.HTML)
}

func TestLookupPromotesReadyPrerender(t *testing.T) {
	c := newCoordinator(t, Config{})

	require.True(t, c.Prerender("https://example.com/next"))
	require.False(t, c.PrerenderReady("https://example.com/next"))

	// Not ready yet: still a miss, and the slot stays in the pool.
	_, ok := c.Lookup("https://example.com/next")
	require.False(t, ok)

	html := []byte("<html>next</html>")
	resources := map[string][]byte{"/app.css": []byte("body{}")}
	require.True(t, c.CompletePrerender("https://example.com/next", html, resources))
	require.True(t, c.PrerenderReady("https://example.com/next"))

	page, ok := c.Lookup("https://example.com/next")
	require.True(t, ok)
	require.Equal(t, html, page.HTML)
	require.Equal(t, resources, page.Resources)

	// Promotion moves the slot out of the pool and into the page cache.
	require.False(t, c.PrerenderReady("https://example.com/next"))
	st := c.Stats()
	require.Equal(t, 0, st.Prerender)
	require.Equal(t, 1, st.Pages.Pages)
}

func TestPrerenderSkipsCachedPages(t *testing.T) {
	c := newCoordinator(t, Config{})

	c.StorePage("https://example.com/", []byte("<html></html>"), nil)
	require.False(t, c.Prerender("https://example.com/"), "already cached, nothing to speculate")
	require.True(t, c.Prerender("https://example.com/other"))
}

func TestNavigationHistoryFlow(t *testing.T) {
	c := newCoordinator(t, Config{})

	require.False(t, c.CanGoBack())

	c.Navigate("https://example.com/x")
	c.Navigate("https://example.com/y")

	url, ok := c.Back()
	require.True(t, ok)
	require.Equal(t, "https://example.com/x", url)
	require.True(t, c.CanGoForward())

	// Navigating away from a back-state discards the forward branch.
	c.Navigate("https://example.com/z")
	require.False(t, c.CanGoForward())

	url, ok = c.Back()
	require.True(t, ok)
	require.Equal(t, "https://example.com/x", url)
}

func TestDeactivateReactivateRoundTrip(t *testing.T) {
	c := newCoordinator(t, Config{})

	snap := &instantnav.TabSnapshot{
		TabID:   "tab-1",
		URL:     "https://example.com/article",
		Title:   "An Article",
		HTML:    []byte("<html>article body</html>"),
		ScrollY: 420,
		History: []string{"https://example.com/", "https://example.com/article"},
	}

	require.NoError(t, c.DeactivateTab(context.Background(), "tab-1", snap))

	restored, ok, err := c.ReactivateTab(context.Background(), "tab-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap, restored)

	// Reactivation is read-only; a second restore works.
	restored, ok, err = c.ReactivateTab(context.Background(), "tab-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.URL, restored.URL)

	removed, err := c.CloseTab(context.Background(), "tab-1")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err = c.ReactivateTab(context.Background(), "tab-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReactivateUnknownTab(t *testing.T) {
	c := newCoordinator(t, Config{})

	_, ok, err := c.ReactivateTab(context.Background(), "never-seen")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.db")

	c, err := New(Config{SnapshotPath: path})
	require.NoError(t, err)

	snap := &instantnav.TabSnapshot{TabID: "tab-1", URL: "https://example.com/", HTML: []byte("<html></html>")}
	require.NoError(t, c.DeactivateTab(context.Background(), "tab-1", snap))
	require.NoError(t, c.Close())

	c2 := newCoordinator(t, Config{SnapshotPath: path})
	restored, ok, err := c2.ReactivateTab(context.Background(), "tab-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.URL, restored.URL)
}

func TestDeactivateInvalidCompressionLevel(t *testing.T) {
	_, err := New(Config{CompressionLevel: 12})
	require.Error(t, err)
}

func TestDeactivateErrorIsTyped(t *testing.T) {
	c := newCoordinator(t, Config{})

	require.NoError(t, c.DeactivateTab(context.Background(), "tab-1", &instantnav.TabSnapshot{TabID: "tab-1"}))
	require.NoError(t, c.Close())

	err := c.DeactivateTab(context.Background(), "tab-1", &instantnav.TabSnapshot{TabID: "tab-1"})
	var serr *snapshot.Error
	require.True(t, errors.As(err, &serr))
	require.ErrorIs(t, err, snapshot.ErrClosed)
}

func TestShouldBlockFollowsTier(t *testing.T) {
	c := newCoordinator(t, Config{DefaultTier: turbo.TierExtreme})

	require.True(t, c.ShouldBlock("https://example.com/a.png", instantnav.ResourceImage))

	c.Turbo().SetTier(turbo.TierOff)
	require.False(t, c.ShouldBlock("https://example.com/a.png", instantnav.ResourceImage))
}

func TestClearCaches(t *testing.T) {
	c := newCoordinator(t, Config{})

	c.StorePage("https://example.com/", []byte("<html></html>"), nil)
	c.StoreResource("https://example.com/a.css", []byte("body{}"))
	c.Prerender("https://example.com/next")
	c.Navigate("https://example.com/")

	c.ClearCaches()

	st := c.Stats()
	require.Equal(t, 0, st.Pages.Pages)
	require.Equal(t, 0, st.Resources.Resources)
	require.Equal(t, 0, st.Prerender)
	require.Equal(t, 1, st.History, "history survives a cache clear")
}

func TestStatsAggregate(t *testing.T) {
	c := newCoordinator(t, Config{DefaultTier: turbo.TierLight})

	c.StorePage("https://example.com/", []byte("0123456789"), nil)
	c.StoreResource("https://example.com/a.css", []byte("body{}"))
	_, _ = c.Resource("https://example.com/a.css")
	c.ShouldBlock("https://doubleclick.net/x", instantnav.ResourceScript)

	st := c.Stats()
	require.Equal(t, 1, st.Pages.Pages)
	require.Equal(t, int64(10), st.Pages.TotalBytes)
	require.Equal(t, uint64(1), st.Resources.Hits)
	require.Equal(t, int64(6), st.Resources.BytesSaved)
	require.Equal(t, uint64(1), st.Blocks.Total)
	require.Equal(t, "light", st.Blocks.Tier)
}
