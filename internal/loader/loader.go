package loader

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"assetd/internal/fetcher"
	"assetd/pkg/types"
)

// ReadyOptions carry the per-subscription callbacks for Ready.
type ReadyOptions struct {
	// Success runs when every awaited bundle published an empty outcome.
	Success func()
	// Error runs with the awaited bundle ids whose outcome held failures.
	Error func(failedBundles []string)
}

// Engine ties the batch loader to the bundle event bus and resolves keyed
// bundle configuration. All entry points are fire-and-forget; completion is
// signaled through callbacks.
type Engine struct {
	bus   *Bus
	batch *batch
	log   zerolog.Logger

	cfgMu sync.RWMutex
	keys  map[string]types.KeyConfig
}

// New builds an engine around the given fetcher.
func New(f fetcher.Fetcher, log zerolog.Logger) *Engine {
	return &Engine{
		bus:   NewBus(),
		batch: &batch{fetcher: f},
		log:   log,
		keys:  make(map[string]types.KeyConfig),
	}
}

// Load declares bundleID (when non-empty) and fetches all paths in parallel.
// On completion it invokes opts.Error with the failed paths if any failed,
// else opts.Success, then publishes the outcome under bundleID so Ready
// subscribers and Done-style consumers observe it. Re-declaring an id that
// was loaded since the last reset returns ErrDuplicateBundle without
// re-triggering the first load.
func (e *Engine) Load(ctx context.Context, paths []string, bundleID string, opts Options) error {
	if err := e.bus.Declare(bundleID); err != nil {
		return err
	}
	if bundleID != "" {
		bundlesDeclared.Inc()
	}
	e.log.Debug().Str("bundle", bundleID).Strs("paths", paths).Msg("bundle load start")
	e.batch.loadAll(ctx, paths, opts, func(notFound []string) {
		if len(notFound) > 0 {
			e.log.Info().Str("bundle", bundleID).Strs("not_found", notFound).Msg("bundle load failed")
			if opts.Error != nil {
				opts.Error(notFound)
			}
		} else {
			e.log.Debug().Str("bundle", bundleID).Msg("bundle load done")
			if opts.Success != nil {
				opts.Success()
			}
		}
		e.publish(bundleID, notFound)
	})
	return nil
}

// LoadPath is the single-path convenience form of Load.
func (e *Engine) LoadPath(ctx context.Context, path, bundleID string, opts Options) error {
	return e.Load(ctx, []string{path}, bundleID, opts)
}

func (e *Engine) publish(bundleID string, notFound []string) {
	if bundleID == "" {
		return
	}
	result := "ok"
	if len(notFound) > 0 {
		result = "failed"
	}
	bundlesPublishedTotal.WithLabelValues(result).Inc()
	e.bus.Publish(bundleID, notFound)
}

// Ready invokes opts exactly once after every listed bundle has completed,
// whether that already happened or happens later. It returns the engine for
// chaining.
func (e *Engine) Ready(bundleIDs []string, opts ReadyOptions) *Engine {
	e.Subscribe(bundleIDs, func(failed []string) {
		if len(failed) > 0 && opts.Error != nil {
			opts.Error(failed)
			return
		}
		if opts.Success != nil {
			opts.Success()
		}
	})
	return e
}

// Subscribe is the low-level form of Ready: cb receives the awaited bundle
// ids whose outcome held failures (empty on full success).
func (e *Engine) Subscribe(bundleIDs []string, cb func(failed []string)) {
	e.bus.Subscribe(bundleIDs, cb)
}

// Done publishes an empty outcome for bundleID, satisfying its subscribers
// without loading anything. Used when a bundle was loaded out-of-band.
func (e *Engine) Done(bundleID string) {
	e.publish(bundleID, nil)
}

// IsDeclared reports whether bundleID has been declared since the last reset.
func (e *Engine) IsDeclared(bundleID string) bool {
	return e.bus.IsDeclared(bundleID)
}

// Outcome returns bundleID's published outcome and whether one exists.
func (e *Engine) Outcome(bundleID string) ([]string, bool) {
	return e.bus.Outcome(bundleID)
}

// Reset clears declared ids, cached outcomes and pending subscriptions.
// In-flight loads are not cancelled; their publishes land in the fresh cache
// with no subscriber effect.
func (e *Engine) Reset() {
	e.bus.Reset()
	bundlesDeclared.Set(0)
	e.log.Info().Msg("engine reset")
}

// Snapshot is a read-only projection of the engine state for /status.
func (e *Engine) Snapshot() types.StatusResponse {
	ids := e.bus.DeclaredIDs()
	sort.Strings(ids)
	bundles := make([]types.BundleStatus, 0, len(ids))
	for _, id := range ids {
		st := types.BundleStatus{ID: id, State: types.BundlePending}
		if outcome, ok := e.bus.Outcome(id); ok {
			if len(outcome) > 0 {
				st.State = types.BundleFailed
				st.NotFound = outcome
			} else {
				st.State = types.BundleLoaded
			}
		}
		bundles = append(bundles, st)
	}

	e.cfgMu.RLock()
	keys := make([]string, 0, len(e.keys))
	for k := range e.keys {
		keys = append(keys, k)
	}
	e.cfgMu.RUnlock()
	sort.Strings(keys)

	return types.StatusResponse{
		Bundles:            bundles,
		PendingSubscribers: e.bus.Pending(),
		Keys:               keys,
	}
}
