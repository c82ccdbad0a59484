package monitoring

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Engine owns the registered locations and the event store, and runs
// scans against them.
type Engine struct {
	store  EventStore
	logger *zap.Logger

	mu        sync.RWMutex
	locations map[string]*Location
}

// NewEngine creates an engine over the given event store. A nil logger
// falls back to a no-op logger.
func NewEngine(store EventStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:     store,
		logger:    logger,
		locations: make(map[string]*Location),
	}
}

// Store returns the engine's event store.
func (e *Engine) Store() EventStore {
	return e.store
}

// AddLocation registers a monitored location and starts its background
// dispatch queue. Location names must be unique.
func (e *Engine) AddLocation(config LocationConfig) (*Location, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("location name is empty")
	}

	if config.Provider == nil {
		return nil, fmt.Errorf("location %q has no provider", config.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.locations[config.Name]; exists {
		return nil, fmt.Errorf("location %q already registered", config.Name)
	}

	location := newLocation(config, e.logger)
	e.locations[config.Name] = location

	return location, nil
}

// Location returns a registered location by name.
func (e *Engine) Location(name string) (*Location, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	location, ok := e.locations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}

	return location, nil
}

// Locations returns every registered location.
func (e *Engine) Locations() []*Location {
	e.mu.RLock()
	defer e.mu.RUnlock()

	locations := make([]*Location, 0, len(e.locations))
	for _, location := range e.locations {
		locations = append(locations, location)
	}

	return locations
}

// Close stops every location's dispatch queue after it empties.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, location := range e.locations {
		location.Close()
	}
}
