package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/filemon/pkg/storage"
)

// Exported constants.
const (
	// DefaultQueueSize is the background dispatch buffer per location.
	DefaultQueueSize = 256
)

// Exported variables.
var (
	// ErrUnknownLocation is returned when a location name is not
	// registered with the engine.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrDrainTimeout is returned when queued events were not processed
	// within the allotted time.
	ErrDrainTimeout = errors.New("drain timed out")
	// ErrLocationClosed is returned when dispatching to a closed
	// location.
	ErrLocationClosed = errors.New("location closed")
)

// LocationConfig describes a monitored location.
type LocationConfig struct {
	// Name uniquely identifies the location.
	Name string
	// Provider is the storage backend holding the files.
	Provider storage.Provider
	// Pattern selects which files belong to the location. Empty
	// matches everything.
	Pattern string
	// OnDemandOnly excludes the location from continuous watching.
	OnDemandOnly bool
	// RateLimit is the location's default scanning speed preset.
	RateLimit *RateLimit
	// Processors handle events in order.
	Processors []Processor
}

// Location is a registered monitored location with its background
// dispatch queue.
type Location struct {
	config LocationConfig
	logger *zap.Logger

	queue  chan *FileEvent
	closed chan struct{}
	done   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	pending int
	idle    chan struct{}
}

// newLocation starts the location's drain goroutine.
func newLocation(config LocationConfig, logger *zap.Logger) *Location {
	idle := make(chan struct{})
	close(idle)

	loc := &Location{
		config: config,
		logger: logger.With(zap.String("location", config.Name)),
		queue:  make(chan *FileEvent, DefaultQueueSize),
		closed: make(chan struct{}),
		idle:   idle,
	}

	loc.done.Add(1)

	go loc.drain()

	return loc
}

// Name returns the location's unique name.
func (l *Location) Name() string {
	return l.config.Name
}

// Provider returns the location's storage backend.
func (l *Location) Provider() storage.Provider {
	return l.config.Provider
}

// Pattern returns the location's file pattern.
func (l *Location) Pattern() string {
	return l.config.Pattern
}

// OnDemandOnly reports whether the location is excluded from
// continuous watching.
func (l *Location) OnDemandOnly() bool {
	return l.config.OnDemandOnly
}

// QueueDepth returns the number of events waiting in the background
// queue.
func (l *Location) QueueDepth() int {
	return len(l.queue)
}

// dispatch hands an event to the location's processors. Synchronous
// dispatch runs them inline; otherwise the event is queued for the
// drain goroutine.
func (l *Location) dispatch(ctx context.Context, event *FileEvent, synchronous bool) error {
	if synchronous {
		l.process(ctx, event)

		return nil
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrLocationClosed, l.config.Name)
	}

	l.pending++
	if l.pending == 1 {
		l.idle = make(chan struct{})
	}
	l.mu.Unlock()

	select {
	case l.queue <- event:
		return nil
	case <-ctx.Done():
		l.eventDone()

		return ctx.Err() //nolint:wrapcheck // Context errors pass through unchanged
	}
}

// eventDone retires one pending event, signalling waiters when the
// queue empties.
func (l *Location) eventDone() {
	l.mu.Lock()
	l.pending--

	if l.pending == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
}

// WaitForDrain blocks until every queued event has been processed or
// the timeout elapses. A timed-out wait holds no resources afterwards.
func (l *Location) WaitForDrain(timeout time.Duration) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: %s after %s", ErrDrainTimeout, l.config.Name, timeout)
	}
}

// Close stops the drain goroutine after the queue empties. Further
// background dispatches fail with ErrLocationClosed.
func (l *Location) Close() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()

		return
	}

	l.stopped = true
	l.mu.Unlock()

	close(l.closed)
	l.done.Wait()
}

// drain processes queued events until the location closes.
func (l *Location) drain() {
	defer l.done.Done()

	for {
		select {
		case event := <-l.queue:
			l.process(context.Background(), event)
			l.eventDone()
		case <-l.closed:
			// Flush whatever is still buffered.
			for {
				select {
				case event := <-l.queue:
					l.process(context.Background(), event)
					l.eventDone()
				default:
					return
				}
			}
		}
	}
}

// process runs every registered processor on the event, in order.
// Processor failures are logged and do not stop later processors.
func (l *Location) process(ctx context.Context, event *FileEvent) {
	for _, processor := range l.config.Processors {
		if err := processor.Process(ctx, event); err != nil {
			l.logger.Warn("processor failed",
				zap.String("processor", processor.Name()),
				zap.String("path", event.FilePath),
				zap.Error(err),
			)
		}
	}
}
