package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"assetd/pkg/types"
)

// BundleWatcher re-reads the bundle configuration file when it changes and
// hands the parsed mapping to onChange. A file that fails to parse or
// validate is logged and skipped, keeping the previous mapping in effect.
type BundleWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(map[string]types.KeyConfig)
	log      zerolog.Logger
	debounce time.Duration
}

func NewBundleWatcher(path string, onChange func(map[string]types.KeyConfig), log zerolog.Logger) (*BundleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &BundleWatcher{
		path:     path,
		watcher:  w,
		onChange: onChange,
		log:      log,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start watches until ctx is done. Editors replace files rather than write
// in place, so the parent directory is watched and events are matched by
// name.
func (bw *BundleWatcher) Start(ctx context.Context) error {
	if err := bw.watcher.Add(filepath.Dir(bw.path)); err != nil {
		return fmt.Errorf("watch %s: %w", bw.path, err)
	}
	go bw.loop(ctx)
	return nil
}

func (bw *BundleWatcher) loop(ctx context.Context) {
	defer bw.watcher.Close()
	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if !bw.relevant(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(bw.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			bw.log.Warn().Err(err).Msg("bundle watcher error")
		case <-reload:
			bw.reload()
		}
	}
}

func (bw *BundleWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(ev.Name) == filepath.Clean(bw.path)
}

func (bw *BundleWatcher) reload() {
	bundles, err := LoadBundles(bw.path)
	if err != nil {
		bw.log.Warn().Err(err).Str("path", bw.path).Msg("bundle reload rejected")
		return
	}
	bw.log.Info().Int("keys", len(bundles)).Msg("bundle config reloaded")
	bw.onChange(bundles)
}
