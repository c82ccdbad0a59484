package monitoring

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/joe/filemon/pkg/storage"
)

// ScanContext is the outcome of a single scan invocation.
type ScanContext struct {
	// LocationName identifies the scanned location.
	LocationName string
	// StartedAt is when the scan began.
	StartedAt time.Time
	// Events are the events emitted by this scan, after filtering.
	Events []*FileEvent
	// Cancelled reports whether the scan stopped early on cancellation
	// or timeout.
	Cancelled bool
	// Message summarizes the scan outcome.
	Message string
}

// Counts tallies the emitted events per type.
func (c *ScanContext) Counts() map[EventType]int {
	counts := make(map[EventType]int)
	for _, event := range c.Events {
		counts[event.Type]++
	}

	return counts
}

// ScanLocation scans one location: it enumerates the provider's files,
// classifies each against the location's recorded history, persists the
// resulting events and dispatches them to the location's processors.
// A cancelled or timed-out scan returns the partial ScanContext along
// with a cancellation error.
func (e *Engine) ScanLocation(ctx context.Context, name string, opts ScanOptions, progress ProgressFunc) (*ScanContext, error) {
	location, err := e.Location(name)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if opts.RateLimit == nil {
		opts.RateLimit = location.config.RateLimit
	}

	scan := &ScanContext{
		LocationName: name,
		StartedAt:    time.Now(),
	}

	pathFilter, err := compilePathFilter(opts.PathFilter)
	if err != nil {
		return scan, err
	}

	files, truncated, err := e.enumerate(ctx, location, pathFilter, opts.MaxFiles)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.cancelScan(scan, 0, 0, ctxErr)
		}

		return scan, err
	}

	history, err := e.liveHistory(ctx, name)
	if err != nil {
		return scan, err
	}

	reporter := newProgressReporter(name, len(files), opts.progressInterval(), scan.StartedAt, progress)
	seen := make(map[string]bool, len(files))
	delay := opts.perFileDelay()

	for scanned, md := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.cancelScan(scan, scanned, len(files), ctxErr)
		}

		event, classifyErr := e.classify(ctx, location, md, history[md.Path], opts)
		if classifyErr != nil {
			return scan, classifyErr
		}

		seen[md.Path] = true

		// A nil event means the file vanished between enumeration and
		// fingerprinting; a later scan records the deletion.
		if event != nil {
			if emitErr := e.emit(ctx, location, scan, event, opts); emitErr != nil {
				return scan, emitErr
			}
		}

		reporter.fileDone(scanned + 1)

		if delay > 0 {
			time.Sleep(delay)
		}
	}

	// Previously-known live paths that are gone now were deleted. A
	// MaxFiles-truncated enumeration says nothing about the files it
	// never reached, so the sweep is skipped; a path filter narrows the
	// sweep the same way it narrowed the enumeration.
	if !truncated {
		for path := range history {
			if seen[path] {
				continue
			}

			if pathFilter != nil && !pathFilter.MatchString(path) {
				continue
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.cancelScan(scan, len(files), len(files), ctxErr)
			}

			event := newFileEvent(name, path, EventDeleted, 0, "")
			if emitErr := e.emit(ctx, location, scan, event, opts); emitErr != nil {
				return scan, emitErr
			}
		}
	}

	reporter.finish(len(files))

	scan.Message = fmt.Sprintf("scan complete: %d files examined, %d events emitted", len(files), len(scan.Events))

	return scan, nil
}

// compilePathFilter compiles an optional path filter expression.
func compilePathFilter(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil //nolint:nilnil // Absent filter means match everything
	}

	compiled, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid path filter: %w", storage.ErrInvalidArgument, err)
	}

	return compiled, nil
}

// enumerate lists the location's files matching the pattern and the
// path filter, stopping at the MaxFiles cap. truncated reports whether
// the cap cut the listing short.
func (e *Engine) enumerate(ctx context.Context, location *Location, pathFilter *regexp.Regexp, maxFiles int) ([]*storage.FileMetadata, bool, error) {
	var (
		files []*storage.FileMetadata
		token string
	)

	for {
		page, err := location.Provider().List(ctx, "", location.Pattern(), true, token)
		if err != nil {
			return nil, false, fmt.Errorf("failed to enumerate %q: %w", location.Name(), err)
		}

		for _, md := range page.Files {
			if pathFilter != nil && !pathFilter.MatchString(md.Path) {
				continue
			}

			files = append(files, md)

			if maxFiles > 0 && len(files) >= maxFiles {
				return files, true, nil
			}
		}

		if page.NextToken == "" {
			return files, false, nil
		}

		token = page.NextToken
	}
}

// liveHistory reduces a location's event history to the last
// non-deleted event per path.
func (e *Engine) liveHistory(ctx context.Context, name string) (map[string]*FileEvent, error) {
	events, err := e.store.EventsForLocation(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %q: %w", name, err)
	}

	live := make(map[string]*FileEvent)

	for _, event := range events {
		if event.Type == EventDeleted {
			delete(live, event.FilePath)

			continue
		}

		live[event.FilePath] = event
	}

	return live, nil
}

// classify builds the event for one enumerated file given its last
// recorded live state. A file that vanished since enumeration yields a
// nil event.
func (e *Engine) classify(ctx context.Context, location *Location, md *storage.FileMetadata, prior *FileEvent, opts ScanOptions) (*FileEvent, error) {
	fingerprint, err := e.fingerprint(ctx, location, md, opts)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil //nolint:nilnil // Vanished file, nothing to classify
		}

		return nil, err
	}

	eventType := EventAdded

	if prior != nil {
		if prior.Size == md.Size && prior.Checksum == fingerprint {
			eventType = EventUnchanged
		} else {
			eventType = EventChanged
		}
	}

	return newFileEvent(location.Name(), md.Path, eventType, md.Size, fingerprint), nil
}

// fingerprint derives the comparison value stored with each event:
// the file's checksum, or its modification time when checksums are
// skipped.
func (e *Engine) fingerprint(ctx context.Context, location *Location, md *storage.FileMetadata, opts ScanOptions) (string, error) {
	if opts.SkipChecksum {
		return md.ModTime.UTC().Format(time.RFC3339Nano), nil
	}

	if md.Checksum != "" {
		return md.Checksum, nil
	}

	checksum, err := location.Provider().Checksum(ctx, md.Path)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %q: %w", md.Path, err)
	}

	return checksum, nil
}

// emit applies the event filter, persists the event and dispatches it
// to the location's processors.
func (e *Engine) emit(ctx context.Context, location *Location, scan *ScanContext, event *FileEvent, opts ScanOptions) error {
	if opts.EventFilter != nil && event.Type != *opts.EventFilter {
		return nil
	}

	if err := e.store.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to record event for %q: %w", event.FilePath, err)
	}

	scan.Events = append(scan.Events, event)

	if err := location.dispatch(ctx, event, opts.WaitForProcessing); err != nil {
		return fmt.Errorf("failed to dispatch event for %q: %w", event.FilePath, err)
	}

	return nil
}

// cancelScan marks the partial scan context and returns the
// cancellation error.
func (e *Engine) cancelScan(scan *ScanContext, scanned, total int, cause error) (*ScanContext, error) {
	scan.Cancelled = true
	scan.Message = fmt.Sprintf("scan cancelled after %d of %d files", scanned, total)

	return scan, fmt.Errorf("%w: %w", storage.ErrCancelled, cause)
}
