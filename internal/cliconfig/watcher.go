package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/instrumental/instrumental-go/pkg/log"
)

// DefaultDebounce coalesces bursts of file events from a single save.
const DefaultDebounce = 100 * time.Millisecond

// Toggler is switched on and off by the watcher. *instrumental.Agent
// satisfies it.
type Toggler interface {
	SetEnabled(enabled bool)
}

// Watcher applies the "enabled" key of the config file to a Toggler
// whenever the file changes.
type Watcher struct {
	path     string
	target   Toggler
	logger   log.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	ready chan struct{}
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, target Toggler, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     path,
		target:   target,
		logger:   logger,
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the watch is established.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the file's directory until ctx is done. The directory is
// watched rather than the file so saves that replace the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	close(w.ready)
	w.logger.Debug("watching config file", log.String("path", w.path))

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	if !FileExists(w.path) {
		return
	}
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	if fc.Enabled == nil {
		return
	}
	w.logger.Info("config reloaded", log.Bool("enabled", *fc.Enabled))
	w.target.SetEnabled(*fc.Enabled)
}
