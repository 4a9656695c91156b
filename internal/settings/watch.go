package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultWatchDebounce coalesces the burst of events an editor save produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the settings whenever the file changes on disk and calls
// onChange with the new value. It blocks until ctx is done. Invalid edits are
// logged and ignored.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func(AppSettings)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic saves replace the file, which drops a file watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	name := filepath.Clean(s.path)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", zap.Error(err))

		case <-timer.C:
			before := s.Get()
			loaded, err := s.Reload()
			if err != nil {
				s.logger.Warn("ignoring invalid settings edit", zap.Error(err))
				continue
			}
			if loaded == before {
				continue
			}
			s.logger.Info("settings reloaded from disk")
			if onChange != nil {
				onChange(loaded)
			}
		}
	}
}
