package monitoring

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/joe/filemon/pkg/storage"
)

// Processor reacts to a file event. Processors registered on a location
// run exactly once per event, in registration order.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string
	// Process handles one event.
	Process(ctx context.Context, event *FileEvent) error
}

// LogProcessor writes each event to a structured log.
type LogProcessor struct {
	logger *zap.Logger
}

// NewLogProcessor creates a processor that logs events. A nil logger
// falls back to a no-op logger.
func NewLogProcessor(logger *zap.Logger) *LogProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LogProcessor{logger: logger}
}

// Name identifies the processor in logs.
func (p *LogProcessor) Name() string {
	return "log"
}

// Process logs the event.
func (p *LogProcessor) Process(_ context.Context, event *FileEvent) error {
	p.logger.Info("file event",
		zap.String("location", event.LocationName),
		zap.String("path", event.FilePath),
		zap.Stringer("type", event.Type),
		zap.Int64("size", event.Size),
		zap.Time("detected_at", event.DetectedAt),
	)

	return nil
}

// ArchiveProcessor copies the file behind each Added or Changed event
// into an archive provider, preserving the relative path under an
// archive root.
type ArchiveProcessor struct {
	source  storage.Provider
	archive storage.Provider
	root    string
}

// NewArchiveProcessor creates a processor that archives event files
// from source into archive under root.
func NewArchiveProcessor(source, archive storage.Provider, root string) *ArchiveProcessor {
	return &ArchiveProcessor{source: source, archive: archive, root: root}
}

// Name identifies the processor in logs.
func (p *ArchiveProcessor) Name() string {
	return "archive"
}

// Process copies the event's file into the archive provider. Deleted
// and Unchanged events leave the archive alone.
func (p *ArchiveProcessor) Process(ctx context.Context, event *FileEvent) error {
	if event.Type != EventAdded && event.Type != EventChanged {
		return nil
	}

	destination := event.FilePath
	if p.root != "" {
		destination = path.Join(p.root, event.FilePath)
	}

	//nolint:wrapcheck // Sentinel-wrapped storage errors pass through for errors.Is
	return storage.CopyAcross(ctx, p.source, event.FilePath, p.archive, destination, nil)
}
