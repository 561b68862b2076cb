package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports whether the media directory changed since the last check.
type Watcher struct {
	watcher *fsnotify.Watcher
	changed atomic.Bool
}

// Watch starts watching dir for created, removed and renamed files.
func Watch(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{watcher: w}, nil
}

// Run consumes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("Media directory changed", "name", event.Name, "op", event.Op.String())
				w.changed.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Media watcher error", "error", err)
		}
	}
}

// Changed reports and clears the change flag.
func (w *Watcher) Changed() bool {
	return w.changed.Swap(false)
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
