package storage

// Behavior is a Provider decorator adding one cross-cutting concern.
// Behaviors hold an inner provider and forward every call to it.
type Behavior interface {
	Provider

	// InnerProvider returns the wrapped provider, which may itself be a
	// Behavior. Walking InnerProvider repeatedly reaches the base
	// provider.
	InnerProvider() Provider
}

// BehaviorFunc wraps a provider with one behavior.
type BehaviorFunc func(inner Provider) Behavior

// Chain applies behaviors to base in order. The last behavior applied
// becomes the outermost object callers interact with: Chain(base,
// logging, caching, retry) yields retry(caching(logging(base))).
func Chain(base Provider, behaviors ...BehaviorFunc) Provider {
	wrapped := base
	for _, wrap := range behaviors {
		wrapped = wrap(wrapped)
	}

	return wrapped
}

// Unwrap walks the behavior chain and returns the base provider.
func Unwrap(p Provider) Provider {
	for {
		behavior, ok := p.(Behavior)
		if !ok {
			return p
		}

		p = behavior.InnerProvider()
	}
}
