package prerender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartAndTake(t *testing.T) {
	p := New(2)

	require.True(t, p.Start("https://example.com/next"))
	require.False(t, p.Start("https://example.com/next"), "duplicate start must return false")

	require.True(t, p.MarkReady("https://example.com/next", []byte("<html></html>"), nil))
	require.True(t, p.IsReady("https://example.com/next"))

	slot, ok := p.Take("https://example.com/next")
	require.True(t, ok)
	require.Equal(t, []byte("<html></html>"), slot.HTML)

	// Take removes the slot.
	require.Equal(t, 0, p.Len())
	_, ok = p.Take("https://example.com/next")
	require.False(t, ok)
}

func TestOverflowEvictsOldest(t *testing.T) {
	p := New(1)

	// Deterministic timestamps so "a" is strictly older than "b".
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	require.True(t, p.Start("a"))
	require.True(t, p.Start("b"))

	require.Equal(t, 1, p.Len())
	require.False(t, p.IsReady("a"))
	_, ok := p.Take("a")
	require.False(t, ok, "a should have been evicted by overflow")
	_, ok = p.Take("b")
	require.True(t, ok)
}

func TestIsReadyUnknownURL(t *testing.T) {
	p := New(1)
	require.False(t, p.IsReady("https://example.com/never-seen"))
}

func TestMarkReadyAfterEviction(t *testing.T) {
	p := New(1)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	require.True(t, p.Start("a"))
	require.True(t, p.Start("b")) // evicts "a"

	require.False(t, p.MarkReady("a", []byte("late"), nil))
}

func TestNotReadyUntilMarked(t *testing.T) {
	p := New(1)
	require.True(t, p.Start("a"))
	require.False(t, p.IsReady("a"))
}

func TestClear(t *testing.T) {
	p := New(2)
	p.Start("a")
	p.Start("b")

	p.Clear()
	require.Equal(t, 0, p.Len())
	require.False(t, p.IsReady("a"))
}
