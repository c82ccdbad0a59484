package storage

import (
	"fmt"
	"sync"
)

// Lifetime controls how the registry resolves a named provider.
type Lifetime int

// Exported constants.
const (
	// Singleton resolves to the same provider instance every time.
	Singleton Lifetime = iota
	// Transient builds a fresh provider (and behavior chain) per resolve.
	Transient
)

// String returns the string representation of a Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Factory builds a base provider instance.
type Factory func() (Provider, error)

// registration is one named provider configuration.
type registration struct {
	factory   Factory
	lifetime  Lifetime
	behaviors []BehaviorFunc

	once     sync.Once
	instance Provider
	buildErr error
}

// Registry resolves named providers with configured behavior chains and
// lifetimes. Safe for concurrent registration and resolution.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register binds a name to a provider factory, lifetime and behavior
// chain. Registering an existing name overwrites the previous binding.
func (r *Registry) Register(name string, factory Factory, lifetime Lifetime, behaviors ...BehaviorFunc) error {
	if name == "" {
		return fmt.Errorf("%w: provider name is empty", ErrInvalidArgument)
	}

	if factory == nil {
		return fmt.Errorf("%w: factory is nil", ErrInvalidArgument)
	}

	r.mu.Lock()
	r.entries[name] = &registration{
		factory:   factory,
		lifetime:  lifetime,
		behaviors: behaviors,
	}
	r.mu.Unlock()

	return nil
}

// Resolve returns the provider bound to name, wrapped in its behavior
// chain. Singleton registrations always return the same instance, built
// at most once even under concurrent resolution; transient registrations
// return a fresh instance per call.
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no provider registered as %q", ErrInvalidArgument, name)
	}

	if entry.lifetime == Transient {
		return r.build(entry)
	}

	entry.once.Do(func() {
		entry.instance, entry.buildErr = r.build(entry)
	})

	return entry.instance, entry.buildErr
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	return names
}

// build constructs a provider with its behavior chain applied.
func (r *Registry) build(entry *registration) (Provider, error) {
	base, err := entry.factory()
	if err != nil {
		return nil, fmt.Errorf("provider factory failed: %w", err)
	}

	return Chain(base, entry.behaviors...), nil
}
