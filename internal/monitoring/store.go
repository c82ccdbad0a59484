package monitoring

import (
	"context"
	"sort"
	"sync"
)

// EventStore persists file events. Implementations must be safe for
// concurrent use.
type EventStore interface {
	// Append records an event. Stores are insert-only.
	Append(ctx context.Context, event *FileEvent) error
	// EventsForLocation returns every event recorded for a location,
	// ordered by detection time then insertion order.
	EventsForLocation(ctx context.Context, location string) ([]*FileEvent, error)
	// EventsForPath returns the events recorded for one path within a
	// location, in the same order.
	EventsForPath(ctx context.Context, location, path string) ([]*FileEvent, error)
	// Count returns the number of events recorded for a location.
	Count(ctx context.Context, location string) (int, error)
}

// MemoryEventStore keeps events in memory, grouped per location.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]*FileEvent
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]*FileEvent)}
}

// Append records an event for its location.
func (s *MemoryEventStore) Append(ctx context.Context, event *FileEvent) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // Context errors pass through unchanged
	}

	s.mu.Lock()
	s.events[event.LocationName] = append(s.events[event.LocationName], event)
	s.mu.Unlock()

	return nil
}

// EventsForLocation returns a copy of the location's event history.
func (s *MemoryEventStore) EventsForLocation(ctx context.Context, location string) ([]*FileEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // Context errors pass through unchanged
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[location]
	events := make([]*FileEvent, len(stored))
	copy(events, stored)

	// Appends already arrive in insertion order; a stable sort on
	// DetectedAt preserves that order for equal timestamps.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DetectedAt.Before(events[j].DetectedAt)
	})

	return events, nil
}

// EventsForPath returns the events recorded for one path.
func (s *MemoryEventStore) EventsForPath(ctx context.Context, location, path string) ([]*FileEvent, error) {
	all, err := s.EventsForLocation(ctx, location)
	if err != nil {
		return nil, err
	}

	var events []*FileEvent

	for _, event := range all {
		if event.FilePath == path {
			events = append(events, event)
		}
	}

	return events, nil
}

// Count returns the number of events recorded for a location.
func (s *MemoryEventStore) Count(ctx context.Context, location string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // Context errors pass through unchanged
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events[location]), nil
}
