package signals

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// AllowlistWatcher watches an allowlist override file and republishes the
// merged allowlists when the file changes. Long-running analysis services
// use it so allowlist edits take effect without a restart.
type AllowlistWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(Allowlists)
	logger  zerolog.Logger

	// debounce collapses rapid successive writes (editors often produce
	// several events per save) into one reload.
	debounceDelay time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewAllowlistWatcher creates a watcher for the given override file. onLoad
// is invoked with the freshly merged allowlists after every successful
// reload.
func NewAllowlistWatcher(path string, onLoad func(Allowlists), logger zerolog.Logger) (*AllowlistWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &AllowlistWatcher{
		path:          path,
		watcher:       watcher,
		onLoad:        onLoad,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "signals.watcher").Logger(),
	}, nil
}

// Start begins watching. The watch runs until ctx is cancelled or Close is
// called. The parent directory is watched rather than the file itself so
// atomic rename-style saves keep being observed.
func (w *AllowlistWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop(ctx)
	w.logger.Debug().Str("path", w.path).Msg("allowlist watcher started")
	return nil
}

func (w *AllowlistWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("allowlist watch error")
		}
	}
}

func (w *AllowlistWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *AllowlistWatcher) reload() {
	lists, err := LoadAllowlists(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("allowlist reload failed, keeping previous lists")
		return
	}
	w.logger.Info().
		Int("headers", lists.Headers.Len()).
		Int("meta_tags", lists.MetaTags.Len()).
		Msg("allowlists reloaded")
	if w.onLoad != nil {
		w.onLoad(lists)
	}
}

// Close stops the watcher and releases its file handles.
func (w *AllowlistWatcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
