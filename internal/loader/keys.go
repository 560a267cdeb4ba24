package loader

import (
	"context"

	"assetd/pkg/types"
)

// Configure replaces the keyed bundle configuration. Entries already
// resolved keep their published outcomes; only future LoadKey calls see the
// new mapping.
func (e *Engine) Configure(cfg map[string]types.KeyConfig) {
	copied := make(map[string]types.KeyConfig, len(cfg))
	for k, v := range cfg {
		copied[k] = v
	}
	e.cfgMu.Lock()
	e.keys = copied
	e.cfgMu.Unlock()
	e.log.Info().Int("keys", len(copied)).Msg("bundle config installed")
}

func (e *Engine) lookupKey(key string) (types.KeyConfig, bool) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	cfg, ok := e.keys[key]
	return cfg, ok
}

// LoadKey resolves one configured entry and runs done once it has completed.
//
// An entry with deps resolves every dep first, in parallel, then loads its
// own files under bundle id = key. An entry with keys resolves the siblings
// in parallel and completes without loading anything itself. A plain entry
// loads its files under the key. A key missing from the configuration
// degrades to waiting for someone else to publish that id.
//
// done fires on completion regardless of per-path failures; the
// success/error split already happened where files were loaded.
func (e *Engine) LoadKey(ctx context.Context, key string, done func()) {
	cfg, ok := e.lookupKey(key)
	if !ok {
		e.log.Debug().Str("key", key).Msg("key not configured, waiting on bundle")
		e.waitBundle(key, done)
		return
	}
	switch {
	case len(cfg.Deps) > 0:
		e.LoadKeys(ctx, cfg.Deps, func() {
			e.loadKeyFiles(ctx, key, cfg.Files, done)
		})
	case len(cfg.Keys) > 0:
		e.LoadKeys(ctx, cfg.Keys, done)
	default:
		e.loadKeyFiles(ctx, key, cfg.Files, done)
	}
}

// LoadKeys resolves every key in parallel and runs done once all have
// completed. No partial-failure list is reported at this layer.
func (e *Engine) LoadKeys(ctx context.Context, keys []string, done func()) {
	j := newJoinCounter(len(keys), func([]string) {
		if done != nil {
			done()
		}
	})
	for _, k := range keys {
		k := k
		e.LoadKey(ctx, k, func() { j.settle(k, true) })
	}
}

// LoadURL loads url as a single-path bundle named key, falling back to
// waiting on key when it is already declared. done fires once the key has
// completed either way.
func (e *Engine) LoadURL(ctx context.Context, url, key string, done func()) {
	e.loadKeyFiles(ctx, key, []string{url}, done)
}

// loadKeyFiles loads files under bundle id = key, or waits on the bundle
// when the key is already declared (someone else is loading it).
func (e *Engine) loadKeyFiles(ctx context.Context, key string, files []string, done func()) {
	if key != "" && e.bus.IsDeclared(key) {
		e.waitBundle(key, done)
		return
	}
	complete := func() {
		if done != nil {
			done()
		}
	}
	err := e.Load(ctx, files, key, Options{
		Success: complete,
		Error:   func([]string) { complete() },
	})
	if err != nil {
		// Declared between the check and the load; wait instead.
		e.waitBundle(key, done)
	}
}

func (e *Engine) waitBundle(key string, done func()) {
	e.bus.Subscribe([]string{key}, func([]string) {
		if done != nil {
			done()
		}
	})
}
