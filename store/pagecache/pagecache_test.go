package pagecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func page(n int) []byte {
	return make([]byte, n)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(Config{MaxBytes: 1024})

	resources := map[string][]byte{"https://example.com/a.css": []byte("body{}")}
	c.Put("https://example.com/", []byte("<html></html>"), resources)

	got, ok := c.Get("https://example.com/")
	require.True(t, ok)
	require.Equal(t, "https://example.com/", got.URL)
	require.Equal(t, []byte("<html></html>"), got.HTML)
	require.Equal(t, int64(len("<html></html>")+6), got.Size)
	require.Equal(t, got.Size, c.TotalBytes())
}

func TestGetMissIsNotAnError(t *testing.T) {
	c := New(Config{})

	got, ok := c.Get("https://example.com/missing")
	require.False(t, ok)
	require.Nil(t, got)
}

func TestBudgetEvictsOldest(t *testing.T) {
	c := New(Config{MaxBytes: 100})

	c.Put("a", page(60), nil)
	c.Put("b", page(60), nil)

	require.Equal(t, int64(60), c.TotalBytes())
	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("b"))
}

func TestEvictionFollowsRecency(t *testing.T) {
	// A is accessed after B and C are inserted, so the LRU victim is B.
	c := New(Config{MaxBytes: 90})

	c.Put("a", page(30), nil)
	c.Put("b", page(30), nil)
	c.Put("c", page(30), nil)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", page(30), nil)

	require.True(t, c.Contains("a"))
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("c"))
	require.True(t, c.Contains("d"))
}

func TestTotalBytesMatchesEntrySum(t *testing.T) {
	c := New(Config{MaxBytes: 200})

	sizes := []int{10, 20, 30, 40, 50, 60, 70}
	for i, n := range sizes {
		c.Put(fmt.Sprintf("page-%d", i), page(n), nil)
		require.LessOrEqual(t, c.TotalBytes(), int64(200))
	}

	var sum int64
	for i := range sizes {
		if got, ok := c.Get(fmt.Sprintf("page-%d", i)); ok {
			sum += got.Size
		}
	}
	require.Equal(t, sum, c.TotalBytes())
}

func TestReplaceExistingReleasesOldBytes(t *testing.T) {
	c := New(Config{MaxBytes: 100})

	c.Put("a", page(80), nil)
	c.Put("a", page(40), nil)

	require.Equal(t, 1, c.Len())
	require.Equal(t, int64(40), c.TotalBytes())
}

func TestMaxPagesCap(t *testing.T) {
	c := New(Config{MaxBytes: 1 << 20, MaxPages: 2})

	c.Put("a", page(10), nil)
	c.Put("b", page(10), nil)
	c.Put("c", page(10), nil)

	require.Equal(t, 2, c.Len())
	require.False(t, c.Contains("a"))
}

func TestHitRate(t *testing.T) {
	c := New(Config{})
	c.Put("a", page(10), nil)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestRemoveAndClear(t *testing.T) {
	c := New(Config{})
	c.Put("a", page(10), nil)
	c.Put("b", page(10), nil)

	require.True(t, c.Remove("a"))
	require.False(t, c.Remove("a"))
	require.Equal(t, int64(10), c.TotalBytes())

	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Equal(t, int64(0), c.TotalBytes())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{MaxBytes: 10 * 1024})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				url := fmt.Sprintf("page-%d-%d", g, i%10)
				c.Put(url, page(64), nil)
				c.Get(url)
			}
		}(g)
	}
	wg.Wait()

	require.LessOrEqual(t, c.TotalBytes(), int64(10*1024))
}
