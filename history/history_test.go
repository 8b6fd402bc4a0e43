package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyHistory(t *testing.T) {
	h := New()

	require.False(t, h.CanGoBack())
	require.False(t, h.CanGoForward())

	_, ok := h.Back()
	require.False(t, ok)
	_, ok = h.Forward()
	require.False(t, ok)
	_, ok = h.Current()
	require.False(t, ok)
}

func TestVisitAdvancesCursor(t *testing.T) {
	h := New()
	h.Visit("x")
	h.Visit("y")

	current, ok := h.Current()
	require.True(t, ok)
	require.Equal(t, "y", current)
	require.True(t, h.CanGoBack())
	require.False(t, h.CanGoForward())
}

func TestBackAndForward(t *testing.T) {
	h := New()
	h.Visit("x")
	h.Visit("y")
	h.Visit("z")

	url, ok := h.Back()
	require.True(t, ok)
	require.Equal(t, "y", url)

	url, ok = h.Back()
	require.True(t, ok)
	require.Equal(t, "x", url)

	// At the start: Back fails and the cursor stays on "x".
	_, ok = h.Back()
	require.False(t, ok)
	current, _ := h.Current()
	require.Equal(t, "x", current)

	url, ok = h.Forward()
	require.True(t, ok)
	require.Equal(t, "y", url)

	url, ok = h.Forward()
	require.True(t, ok)
	require.Equal(t, "z", url)

	_, ok = h.Forward()
	require.False(t, ok)
}

func TestBranchTruncation(t *testing.T) {
	// visit(X); visit(Y); back(); visit(Z) leaves exactly [X, Z] with the
	// cursor at Z.
	h := New()
	h.Visit("x")
	h.Visit("y")

	url, ok := h.Back()
	require.True(t, ok)
	require.Equal(t, "x", url)

	h.Visit("z")

	require.Equal(t, []string{"x", "z"}, h.Entries())
	current, _ := h.Current()
	require.Equal(t, "z", current)
	require.False(t, h.CanGoForward())
}

func TestClear(t *testing.T) {
	h := New()
	h.Visit("x")
	h.Visit("y")

	h.Clear()
	require.Equal(t, 0, h.Len())
	_, ok := h.Current()
	require.False(t, ok)

	// Usable again after clear.
	h.Visit("a")
	current, _ := h.Current()
	require.Equal(t, "a", current)
}
