package resourcecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(Config{MaxBytes: 1024})

	c.Put("https://example.com/a.css", []byte("body{}"))

	got, ok := c.Get("https://example.com/a.css")
	require.True(t, ok)
	require.Equal(t, []byte("body{}"), got)
	require.Equal(t, int64(6), c.TotalBytes())
}

func TestFIFOIgnoresAccess(t *testing.T) {
	// A is accessed via Get, but FIFO still evicts it first because it was
	// inserted first.
	c := New(Config{MaxBytes: 90})

	c.Put("a", make([]byte, 30))
	c.Put("b", make([]byte, 30))
	c.Put("c", make([]byte, 30))

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", make([]byte, 30))

	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("b"))
	require.True(t, c.Contains("c"))
	require.True(t, c.Contains("d"))
}

func TestBytesSavedCountsHitSizes(t *testing.T) {
	c := New(Config{})

	c.Put("a", make([]byte, 100))
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, int64(200), stats.BytesSaved)
}

func TestBudgetInvariantHolds(t *testing.T) {
	c := New(Config{MaxBytes: 256})

	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("res-%d", i), make([]byte, 32))
		require.LessOrEqual(t, c.TotalBytes(), int64(256))
	}
	require.Equal(t, 8, c.Len())
}

func TestUpdateExistingKeepsQueuePosition(t *testing.T) {
	c := New(Config{MaxBytes: 100})

	c.Put("a", make([]byte, 20))
	c.Put("b", make([]byte, 20))

	// Rewriting "a" must not move it to the back of the queue.
	c.Put("a", make([]byte, 30))
	require.Equal(t, int64(50), c.TotalBytes())

	// Force one eviction: "a" is still the oldest insertion.
	c.Put("c", make([]byte, 60))
	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("b"))
	require.True(t, c.Contains("c"))
}

func TestUpdateGrowingOverBudgetEvicts(t *testing.T) {
	c := New(Config{MaxBytes: 100})

	c.Put("a", make([]byte, 40))
	c.Put("b", make([]byte, 40))

	// Growing "b" beyond the budget evicts from the front ("a" first).
	c.Put("b", make([]byte, 90))
	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("b"))
	require.Equal(t, int64(90), c.TotalBytes())
}

func TestClear(t *testing.T) {
	c := New(Config{})
	c.Put("a", []byte("x"))
	c.Put("b", []byte("y"))

	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Equal(t, int64(0), c.TotalBytes())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{MaxBytes: 4 * 1024})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				url := fmt.Sprintf("res-%d-%d", g, i%10)
				c.Put(url, make([]byte, 64))
				c.Get(url)
			}
		}(g)
	}
	wg.Wait()

	require.LessOrEqual(t, c.TotalBytes(), int64(4*1024))
}
