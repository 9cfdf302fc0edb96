package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// watch runs the pipeline now and again after every change to the config
// file, until ctx is cancelled. A failing run is logged and the watch goes on.
func watch(ctx context.Context, opts runOptions, logger *slog.Logger) error {
	path := opts.configPath
	if path == "" {
		return fmt.Errorf("--watch requires --config")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	opts.configPath = abs

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	changes := debounce(ctx, watcher, abs, watchDebounce, logger)

	for {
		if _, err := runOnce(ctx, opts, logger); err != nil {
			logger.Error("Run failed", "error", err)
		}
		logger.Info("Watching config for changes", "path", abs)

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Info("Config changed, re-running", "path", abs)
		}
	}
}

// debounce emits once per burst of write/create/rename events on path.
func debounce(ctx context.Context, w *fsnotify.Watcher, path string, wait time.Duration, logger *slog.Logger) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(wait)
				} else {
					timer.Reset(wait)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error", "error", err)
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
