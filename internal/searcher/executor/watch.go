package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 500 * time.Millisecond

// WatchFile reloads the executor whenever the snapshot file at path is
// created, written or renamed into place. Bursts of events within debounce
// collapse into one reload. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that the
// atomic rename used by the local store is observed.
func (e *Executor) WatchFile(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating snapshot watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(path)
	e.logger.Info("watching snapshot for changes", "path", target)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("snapshot watcher error", "error", err)
		case <-timer.C:
			if err := e.Reload(ctx); err != nil {
				e.logger.Warn("keeping previous index after failed reload", "error", err)
			}
		}
	}
}
