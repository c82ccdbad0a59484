package monitoring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/joe/filemon/pkg/storage"
)

// Watcher turns filesystem notifications for a local location into file
// events, using the same classification and dispatch as the scanner.
type Watcher struct {
	engine   *Engine
	location *Location
	local    *storage.LocalProvider
	logger   *zap.Logger
}

// NewWatcher prepares continuous monitoring for a location. The
// location must be backed by a local provider and not be marked
// on-demand only.
func (e *Engine) NewWatcher(name string) (*Watcher, error) {
	location, err := e.Location(name)
	if err != nil {
		return nil, err
	}

	if location.OnDemandOnly() {
		return nil, fmt.Errorf("location %q is on-demand only", name)
	}

	local, ok := storage.Unwrap(location.Provider()).(*storage.LocalProvider)
	if !ok {
		return nil, fmt.Errorf("location %q is not backed by a local provider", name)
	}

	return &Watcher{
		engine:   e,
		location: location,
		local:    local,
		logger:   e.logger.With(zap.String("location", name)),
	}, nil
}

// Watch blocks translating filesystem notifications into events until
// ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = notifier.Close() }()

	if err := w.watchTree(notifier, w.local.Root()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // Context errors pass through unchanged

		case notifyErr, ok := <-notifier.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("watcher error", zap.Error(notifyErr))

		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}

			w.handle(ctx, notifier, event)
		}
	}
}

// watchTree registers the directory and every existing subdirectory
// with the notifier. fsnotify watches are not recursive.
func (w *Watcher) watchTree(notifier *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return notifier.Add(path)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return nil
}

// handle maps one filesystem notification onto a file event.
func (w *Watcher) handle(ctx context.Context, notifier *fsnotify.Watcher, event fsnotify.Event) {
	relPath, err := filepath.Rel(w.local.Root(), event.Name)
	if err != nil {
		return
	}

	relPath = filepath.ToSlash(relPath)

	if event.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			// New directories join the watch; they do not emit events.
			if watchErr := w.watchTree(notifier, event.Name); watchErr != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", relPath), zap.Error(watchErr))
			}

			return
		}
	}

	if !w.matches(relPath) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.emitDeleted(ctx, relPath)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.emitUpsert(ctx, relPath)
	}
}

// matches applies the location's pattern the way providers do: empty
// matches everything, comparison is case-insensitive.
func (w *Watcher) matches(relPath string) bool {
	pattern := w.location.Pattern()
	if pattern == "" {
		return true
	}

	matched, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(relPath))

	return err == nil && matched
}

// emitUpsert classifies a created or written file against the store and
// emits Added or Changed.
func (w *Watcher) emitUpsert(ctx context.Context, relPath string) {
	md, err := w.location.Provider().Metadata(ctx, relPath)
	if err != nil {
		// Short-lived files can vanish between the notification and the
		// stat.
		if storage.IsNotFound(err) {
			return
		}

		w.logger.Warn("failed to read file metadata", zap.String("path", relPath), zap.Error(err))

		return
	}

	checksum, err := w.location.Provider().Checksum(ctx, relPath)
	if err != nil {
		w.logger.Warn("failed to fingerprint file", zap.String("path", relPath), zap.Error(err))

		return
	}

	history, err := w.engine.liveHistory(ctx, w.location.Name())
	if err != nil {
		w.logger.Warn("failed to load history", zap.Error(err))

		return
	}

	eventType := EventAdded
	if _, known := history[relPath]; known {
		eventType = EventChanged
	}

	w.record(ctx, newFileEvent(w.location.Name(), relPath, eventType, md.Size, checksum))
}

// emitDeleted emits Deleted for a known path that was removed.
func (w *Watcher) emitDeleted(ctx context.Context, relPath string) {
	history, err := w.engine.liveHistory(ctx, w.location.Name())
	if err != nil {
		w.logger.Warn("failed to load history", zap.Error(err))

		return
	}

	if _, known := history[relPath]; !known {
		return
	}

	w.record(ctx, newFileEvent(w.location.Name(), relPath, EventDeleted, 0, ""))
}

// record persists and dispatches one event.
func (w *Watcher) record(ctx context.Context, event *FileEvent) {
	if err := w.engine.store.Append(ctx, event); err != nil {
		w.logger.Warn("failed to record event", zap.String("path", event.FilePath), zap.Error(err))

		return
	}

	if err := w.location.dispatch(ctx, event, false); err != nil {
		w.logger.Warn("failed to dispatch event", zap.String("path", event.FilePath), zap.Error(err))
	}
}
