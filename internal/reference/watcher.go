package reference

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a file-backed Store when its file changes on disk
type Watcher struct {
	store  *Store
	logger zerolog.Logger
}

// NewWatcher creates a watcher for store
func NewWatcher(store *Store, logger zerolog.Logger) *Watcher {
	return &Watcher{
		store:  store,
		logger: logger.With().Str("component", "reference-watcher").Logger(),
	}
}

// Watch starts watching in the background until ctx is cancelled. The parent
// directory is watched so editors that replace the file by rename are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	path := w.store.Path()
	if path == "" {
		return fmt.Errorf("reference store has no backing file")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.handleFsEvent(event)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn().Err(err).Msg("watch error")
			}
		}
	}()

	w.logger.Info().Str("path", path).Msg("watching reference file")
	return nil
}

// handleFsEvent reloads on writes and creates of the watched file. It reports
// whether new tables were installed.
func (w *Watcher) handleFsEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
		return false
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	changed, err := w.store.Reload()
	if err != nil {
		w.logger.Error().Err(err).Msg("reference reload rejected, keeping current tables")
		return false
	}
	if changed {
		w.logger.Info().Int("version", w.store.Current().Version).Msg("reference tables reloaded")
	}
	return changed
}
