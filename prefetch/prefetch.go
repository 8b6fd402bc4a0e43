// Package prefetch provides singleflight-based deduplication for concurrent
// page fetches. When a prerender and a user navigation race for the same
// url, only one fetch is performed and both callers share the result.
package prefetch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Result holds a fetched page and its sub-resources.
type Result struct {
	HTML      []byte
	Resources map[string][]byte
}

// FetchFunc retrieves a page from the network. The context passed to
// FetchFunc is detached from any single caller so that one caller timing
// out does not cancel the fetch for other waiters.
type FetchFunc func(ctx context.Context) (*Result, error)

// Deduper deduplicates concurrent fetches for the same url using
// singleflight. It uses DoChan so each caller can respect its own context
// deadline without cancelling the in-flight fetch for others.
type Deduper struct {
	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a Deduper.
type Option func(*Deduper)

// WithLogger sets the logger for the deduper.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deduper) {
		d.logger = logger
	}
}

// New creates a new Deduper.
func New(opts ...Option) *Deduper {
	d := &Deduper{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do deduplicates concurrent fetches for the same url.
// The fn receives a detached context (not tied to any single caller).
// Returns the result, whether it was shared with another caller, and any error.
//
// If the caller's context expires before the fetch completes, Do returns
// the context error but the in-flight fetch continues for other waiters.
func (d *Deduper) Do(ctx context.Context, url string, fn FetchFunc) (*Result, bool, error) {
	ch := d.group.DoChan(url, func() (any, error) {
		// Detached so that no single caller's cancellation stops the
		// fetch for everyone else.
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(*Result), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Forget removes the url from the singleflight group, allowing a subsequent
// call to retry. Typically called after a fetch error.
func (d *Deduper) Forget(url string) {
	d.group.Forget(url)
}
