package loader

import (
	"context"
	"net/http"

	"assetd/internal/fetcher"
)

// Options control one orchestrated load.
type Options struct {
	// Success runs when every path loaded.
	Success func()
	// Error runs with the paths that failed when at least one did.
	Error func(notFound []string)
	// Before is forwarded to the fetcher ahead of each attempt.
	Before func(path string, req *http.Request) bool
	// NumRetries is the per-path retry budget after the first failure.
	NumRetries int
	// Sync dispatches paths sequentially in input order instead of racing
	// one goroutine per path. Completion semantics are identical.
	Sync bool
}

// batch fans paths out to the fetcher and joins their settlements.
type batch struct {
	fetcher fetcher.Fetcher
}

// loadAll fetches all paths and calls onDone exactly once with the paths
// that failed, in settlement order. An empty path set completes immediately.
//
// Settlement rules: loaded counts as success; error and prevented blocks
// count as failures; an advisory (non-prevented) block is ignored because a
// terminal settle for that path still follows. See Fetcher.
func (b *batch) loadAll(ctx context.Context, paths []string, opts Options, onDone func(notFound []string)) {
	j := newJoinCounter(len(paths), onDone)
	settle := func(path string, outcome fetcher.Outcome, prevented bool) {
		switch outcome {
		case fetcher.OutcomeLoaded:
			fetchResultsTotal.WithLabelValues("loaded").Inc()
			j.settle(path, true)
		case fetcher.OutcomeError:
			fetchResultsTotal.WithLabelValues("error").Inc()
			j.settle(path, false)
		case fetcher.OutcomeBlocked:
			if prevented {
				fetchResultsTotal.WithLabelValues("blocked").Inc()
				j.settle(path, false)
			}
		}
	}
	fopts := fetcher.Options{NumRetries: opts.NumRetries, Before: opts.Before}
	if opts.Sync {
		go func() {
			for _, p := range paths {
				b.fetcher.Fetch(ctx, p, fopts, settle)
			}
		}()
		return
	}
	for _, p := range paths {
		go b.fetcher.Fetch(ctx, p, fopts, settle)
	}
}
