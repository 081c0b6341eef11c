package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when one of the files it was loaded
// from changes on disk and hands the new Config to onChange.
type Watcher struct {
	watcher  *fsnotify.Watcher
	source   string
	paths    map[string]bool
	onChange func(*Config)
	mu       sync.Mutex
	timer    *time.Timer
	running  bool
}

// NewWatcher watches the files cfg was loaded from. A reload repeats cfg's
// Load, so the base file and the ROSTER_CONFIG overlay are merged again.
func NewWatcher(cfg *Config, onChange func(*Config)) (*Watcher, error) {
	files := cfg.Files()
	if len(files) == 0 {
		return nil, fmt.Errorf("config watcher needs a config file")
	}

	paths := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		paths[abs] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		watcher:  w,
		source:   cfg.source,
		paths:    paths,
		onChange: onChange,
	}, nil
}

// Start watches the files' directories, since editors often replace a file
// rather than write it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx)

	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.paths[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// schedule reloads once writes have settled for reloadDebounce.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.source)
	if err != nil {
		slog.Warn("Config reload failed", "source", w.source, "error", err)
		return
	}
	slog.Info("Config reloaded", "files", cfg.Files())
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
