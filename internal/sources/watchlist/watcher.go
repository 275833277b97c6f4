package watchlist

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/asksite/internal/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher emits a signal whenever the watch-list file changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	file     string
	debounce time.Duration
	logger   logger.Logger
}

// NewWatcher creates a watcher for file. The parent directory is watched so
// editors that replace the file on save are still seen.
func NewWatcher(file string, debounce time.Duration, log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
	}

	return &Watcher{
		watcher:  w,
		file:     abs,
		debounce: debounce,
		logger:   log,
	}, nil
}

// Watch starts monitoring and returns a channel receiving one value per settled change.
// The channel is closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := w.watcher.Add(filepath.Dir(w.file)); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.file), err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)

		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.file {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				fire = time.After(w.debounce)
			case <-fire:
				fire = nil
				select {
				case changes <- struct{}{}:
				default:
					// a change is already pending
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch-list watcher error", logger.Error(err))
			}
		}
	}()

	return changes, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
