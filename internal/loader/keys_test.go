package loader

import (
	"context"
	"sync"
	"testing"
	"time"

	"assetd/internal/fetcher"
	"assetd/pkg/types"
)

// gateFetcher parks every fetch until the test releases it.
type gateFetcher struct {
	mu      sync.Mutex
	pending map[string]func()
	started chan string
}

func newGateFetcher() *gateFetcher {
	return &gateFetcher{pending: make(map[string]func()), started: make(chan string, 16)}
}

func (g *gateFetcher) Fetch(_ context.Context, path string, _ fetcher.Options, settle fetcher.SettleFunc) {
	g.mu.Lock()
	g.pending[path] = func() { settle(path, fetcher.OutcomeLoaded, false) }
	g.mu.Unlock()
	g.started <- path
}

func (g *gateFetcher) release(t *testing.T, path string) {
	t.Helper()
	g.mu.Lock()
	fn, ok := g.pending[path]
	delete(g.pending, path)
	g.mu.Unlock()
	if !ok {
		t.Fatalf("no pending fetch for %s", path)
	}
	fn()
}

func (g *gateFetcher) expectStart(t *testing.T, want map[string]bool) {
	t.Helper()
	for range want {
		select {
		case p := <-g.started:
			if !want[p] {
				t.Fatalf("unexpected fetch of %s", p)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for fetches %v", want)
		}
	}
}

func (g *gateFetcher) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case p := <-g.started:
		t.Fatalf("unexpected fetch of %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoadKey_PlainEntryLoadsFilesUnderKey(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f)
	e.Configure(map[string]types.KeyConfig{
		"app": {Files: []string{"app.js", "app.css"}},
	})
	done := make(chan []string, 1)
	e.LoadKey(context.Background(), "app", func() { done <- nil })
	waitFor(t, done, "key app")
	if !e.IsDeclared("app") {
		t.Fatalf("key did not declare its bundle")
	}
	if _, ok := e.Outcome("app"); !ok {
		t.Fatalf("key bundle not published")
	}
}

func TestLoadKey_DepsCompleteBeforeOwnFiles(t *testing.T) {
	g := newGateFetcher()
	e := newTestEngine(g)
	e.Configure(map[string]types.KeyConfig{
		"a": {Files: []string{"x.js"}, Deps: []string{"b", "c"}},
		"b": {Files: []string{"b.js"}},
		"c": {Files: []string{"c.js"}},
	})

	done := make(chan []string, 1)
	e.LoadKey(context.Background(), "a", func() { done <- nil })

	// Both deps start, in either order; a's own file must not.
	g.expectStart(t, map[string]bool{"b.js": true, "c.js": true})
	g.expectIdle(t)

	g.release(t, "b.js")
	// One dep done is not enough.
	g.expectIdle(t)

	g.release(t, "c.js")
	g.expectStart(t, map[string]bool{"x.js": true})
	g.release(t, "x.js")
	waitFor(t, done, "key a")
}

func TestLoadKey_SiblingKeysFireWithoutOwnLoad(t *testing.T) {
	g := newGateFetcher()
	e := newTestEngine(g)
	e.Configure(map[string]types.KeyConfig{
		"all":    {Keys: []string{"vendor", "app"}},
		"vendor": {Files: []string{"v.js"}},
		"app":    {Files: []string{"a.js"}},
	})

	done := make(chan []string, 1)
	e.LoadKey(context.Background(), "all", func() { done <- nil })
	g.expectStart(t, map[string]bool{"v.js": true, "a.js": true})
	g.release(t, "v.js")
	g.release(t, "a.js")
	waitFor(t, done, "key all")

	// The aggregating key performs no load and declares no bundle of its own.
	if e.IsDeclared("all") {
		t.Fatalf("keys-only entry declared a bundle")
	}
}

func TestLoadKey_MissingKeyWaitsForPublication(t *testing.T) {
	e := newTestEngine(&fakeFetcher{})
	done := make(chan []string, 1)
	e.LoadKey(context.Background(), "external", func() { done <- nil })

	select {
	case <-done:
		t.Fatalf("fired before anyone published the key")
	case <-time.After(50 * time.Millisecond):
	}
	e.Done("external")
	waitFor(t, done, "external key")
}

func TestLoadKey_AlreadyDeclaredWaitsInsteadOfReloading(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f)
	e.Configure(map[string]types.KeyConfig{
		"app": {Files: []string{"app.js"}},
	})

	first := make(chan []string, 1)
	e.LoadKey(context.Background(), "app", func() { first <- nil })
	waitFor(t, first, "first resolution")
	calls := f.callCount()

	second := make(chan []string, 1)
	e.LoadKey(context.Background(), "app", func() { second <- nil })
	waitFor(t, second, "second resolution")
	if f.callCount() != calls {
		t.Fatalf("second resolution re-fetched files")
	}
}

func TestLoadKeys_JoinsAllKeys(t *testing.T) {
	g := newGateFetcher()
	e := newTestEngine(g)
	e.Configure(map[string]types.KeyConfig{
		"one": {Files: []string{"1.js"}},
		"two": {Files: []string{"2.js"}},
	})
	done := make(chan []string, 1)
	e.LoadKeys(context.Background(), []string{"one", "two"}, func() { done <- nil })
	g.expectStart(t, map[string]bool{"1.js": true, "2.js": true})
	g.release(t, "1.js")
	select {
	case <-done:
		t.Fatalf("fired with one key outstanding")
	case <-time.After(50 * time.Millisecond):
	}
	g.release(t, "2.js")
	waitFor(t, done, "both keys")
}

func TestLoadURL_FallsBackToWaitingWhenDeclared(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f)

	loaded := make(chan []string, 1)
	_ = e.Load(context.Background(), []string{"lib.js"}, "lib", Options{Success: func() { loaded <- nil }})
	waitFor(t, loaded, "lib bundle")
	calls := f.callCount()

	done := make(chan []string, 1)
	e.LoadURL(context.Background(), "lib.js", "lib", func() { done <- nil })
	waitFor(t, done, "loadurl fallback")
	if f.callCount() != calls {
		t.Fatalf("fallback re-fetched the url")
	}
}

func TestLoadURL_LoadsWhenUndeclared(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f)
	done := make(chan []string, 1)
	e.LoadURL(context.Background(), "solo.js", "solo", func() { done <- nil })
	waitFor(t, done, "loadurl")
	if !e.IsDeclared("solo") {
		t.Fatalf("loadurl did not declare its key")
	}
}
