package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

func TestBundleWatcher_ReloadsOnWrite(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bundles.yaml", "a:\n  files: [a.js]\n")

	got := make(chan map[string]types.KeyConfig, 1)
	w, err := NewBundleWatcher(p, func(b map[string]types.KeyConfig) { got <- b }, zerolog.Nop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(p, []byte("a:\n  files: [a.js, b.js]\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case b := <-got:
		if len(b["a"].Files) != 2 {
			t.Fatalf("reloaded entry: %+v", b["a"])
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reload never fired")
	}
}

func TestBundleWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bundles.yaml", "a:\n  files: [a.js]\n")

	got := make(chan map[string]types.KeyConfig, 1)
	w, err := NewBundleWatcher(p, func(b map[string]types.KeyConfig) { got <- b }, zerolog.Nop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A cycle fails validation; onChange must not run.
	bad := "a:\n  files: [a.js]\n  deps: [b]\nb:\n  files: [b.js]\n  deps: [a]\n"
	if err := os.WriteFile(p, []byte(bad), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case b := <-got:
		t.Fatalf("invalid config was installed: %+v", b)
	case <-time.After(300 * time.Millisecond):
	}
}
