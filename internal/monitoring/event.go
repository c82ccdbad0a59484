// Package monitoring implements the file-scanning engine: it enumerates
// files through storage providers, classifies them against recorded
// history, persists the resulting events and hands them to per-location
// processors.
package monitoring

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies what happened to a file between scans.
type EventType int

// Exported constants.
const (
	// EventAdded marks a file seen for the first time.
	EventAdded EventType = iota
	// EventChanged marks a file whose fingerprint differs from its last
	// recorded state.
	EventChanged
	// EventDeleted marks a previously-known file that is now absent.
	EventDeleted
	// EventUnchanged marks a file whose fingerprint matches its last
	// recorded state.
	EventUnchanged
)

// String returns the string representation of an EventType.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	case EventUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ParseEventType converts a string such as "added" back into an
// EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "added":
		return EventAdded, nil
	case "changed":
		return EventChanged, nil
	case "deleted":
		return EventDeleted, nil
	case "unchanged":
		return EventUnchanged, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

// FileEvent records one observed file state change. Events are created
// by the engine and never mutated afterwards.
type FileEvent struct {
	ID           uuid.UUID
	LocationName string
	FilePath     string
	Type         EventType
	DetectedAt   time.Time
	Size         int64
	Checksum     string
}

// newFileEvent stamps a fresh event with an ID and detection time.
func newFileEvent(location, path string, eventType EventType, size int64, checksum string) *FileEvent {
	return &FileEvent{
		ID:           uuid.New(),
		LocationName: location,
		FilePath:     path,
		Type:         eventType,
		DetectedAt:   time.Now(),
		Size:         size,
		Checksum:     checksum,
	}
}
