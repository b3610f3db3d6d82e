// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
)

// Editors and config-management tools tend to write a temp file and
// rename it over the original, which yields a burst of events; changes
// are coalesced over this window before reload fires.
const debounceInterval = time.Second

// Watcher watches one config file and invokes reload after changes
// settle. The reload callback decides what to do with the new file;
// the watcher itself never mutates configuration.
type Watcher struct {
	path   string
	reload func(path string) error
	log    *slog.Logger

	watcher *fsnotify.Watcher
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewWatcher creates a watcher for path. reload runs on the watcher's
// goroutine after each settled change; a nil logger falls back to
// slog.Default.
func NewWatcher(path string, reload func(path string) error, log *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, oops.Code("CONFIG_WATCH_FAILED").Errorf("config path must not be empty")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, oops.Code("CONFIG_WATCH_FAILED").Wrapf(err, "create fsnotify watcher")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		path:    path,
		reload:  reload,
		log:     log,
		watcher: fsw,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. It watches the file's directory rather than
// the file itself so rename-based saves keep being observed, and
// returns once the event loop goroutine is running. Start is a no-op
// if the watcher already runs.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return oops.Code("CONFIG_WATCH_FAILED").With("path", w.path).Wrapf(err, "watch config directory")
	}

	w.log.Info("config watcher started", "path", w.path)
	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning reports whether the event loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matchesConfigFile(event) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.log.Debug("config file event", "op", event.Op.String(), "file", event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher error", "error", err)

		case <-w.stopCh:
			w.log.Info("config watcher stopped")
			return

		case <-ctx.Done():
			w.log.Info("config watcher canceled")
			return
		}
	}
}

// matchesConfigFile filters directory events down to the watched file.
func (w *Watcher) matchesConfigFile(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	configPath, err := filepath.Abs(w.path)
	if err != nil {
		return false
	}
	return eventPath == configPath
}

func (w *Watcher) fire() {
	start := time.Now()
	if err := w.reload(w.path); err != nil {
		w.log.Error("config reload failed", "path", w.path, "error", err, "duration", time.Since(start))
		return
	}
	w.log.Info("config reloaded", "path", w.path, "duration", time.Since(start))
}
