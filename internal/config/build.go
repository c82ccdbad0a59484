package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joe/filemon/internal/monitoring"
	"github.com/joe/filemon/pkg/storage"
)

// NewLogger builds a production logger at the configured level.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// BuildRegistry constructs the provider registry described by the
// configuration.
func (cfg *Config) BuildRegistry(logger *zap.Logger) (*storage.Registry, error) {
	registry := storage.NewRegistry()

	for name, provider := range cfg.Providers {
		lifetime := storage.Singleton
		if strings.EqualFold(provider.Lifetime, "transient") {
			lifetime = storage.Transient
		}

		err := registry.Register(name, providerFactory(name, provider), lifetime, behaviorFuncs(provider, logger)...)
		if err != nil {
			return nil, fmt.Errorf("failed to register provider %q: %w", name, err)
		}
	}

	return registry, nil
}

// providerFactory returns the factory building one configured provider.
func providerFactory(name string, provider ProviderConfig) storage.Factory {
	switch provider.Kind {
	case "memory":
		return func() (storage.Provider, error) {
			return storage.NewInMemoryProvider(name), nil
		}
	case "local":
		return func() (storage.Provider, error) {
			return storage.NewLocalProvider(name, provider.Root)
		}
	default: // sftp, already validated
		return func() (storage.Provider, error) {
			return storage.NewSFTPProvider(name, storage.SFTPConfig{
				Host:        provider.Host,
				Port:        provider.Port,
				User:        provider.User,
				Root:        provider.Root,
				PoolInitial: provider.PoolInitial,
				PoolMax:     provider.PoolMax,
			})
		}
	}
}

// behaviorFuncs maps configured behavior names onto their decorators.
func behaviorFuncs(provider ProviderConfig, logger *zap.Logger) []storage.BehaviorFunc {
	funcs := make([]storage.BehaviorFunc, 0, len(provider.Behaviors))

	for _, behavior := range provider.Behaviors {
		switch behavior {
		case "logging":
			funcs = append(funcs, storage.WithLogging(logger))
		case "caching":
			funcs = append(funcs, storage.WithCaching(provider.CacheTTL))
		case "retry":
			funcs = append(funcs, storage.WithRetry(provider.MaxRetries, provider.RetryBackoff))
		}
	}

	return funcs
}

// BuildStore constructs the configured event store. The returned
// cleanup function releases any held resources.
func (cfg *Config) BuildStore() (monitoring.EventStore, func() error, error) {
	if cfg.Store.Kind == "sqlite" {
		store, err := monitoring.NewSQLiteEventStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event store: %w", err)
		}

		return store, store.Close, nil
	}

	return monitoring.NewMemoryEventStore(), func() error { return nil }, nil
}

// BuildEngine constructs the monitoring engine with every configured
// location registered. The returned cleanup stops dispatch queues and
// closes the store.
func (cfg *Config) BuildEngine(logger *zap.Logger) (*monitoring.Engine, func() error, error) {
	registry, err := cfg.BuildRegistry(logger)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := cfg.BuildStore()
	if err != nil {
		return nil, nil, err
	}

	engine := monitoring.NewEngine(store, logger)
	cleanup := func() error {
		engine.Close()

		return closeStore()
	}

	for _, location := range cfg.Locations {
		provider, resolveErr := registry.Resolve(location.Provider)
		if resolveErr != nil {
			return nil, nil, fmt.Errorf("location %q: %w", location.Name, resolveErr)
		}

		processors, buildErr := buildProcessors(location, provider, registry, logger)
		if buildErr != nil {
			return nil, nil, buildErr
		}

		_, addErr := engine.AddLocation(monitoring.LocationConfig{
			Name:         location.Name,
			Provider:     provider,
			Pattern:      location.Pattern,
			OnDemandOnly: location.OnDemand,
			RateLimit:    monitoring.RateLimitByName(location.RateLimit),
			Processors:   processors,
		})
		if addErr != nil {
			return nil, nil, fmt.Errorf("failed to register location %q: %w", location.Name, addErr)
		}
	}

	return engine, cleanup, nil
}

// buildProcessors constructs one location's processor chain.
func buildProcessors(location LocationConfig, provider storage.Provider, registry *storage.Registry, logger *zap.Logger) ([]monitoring.Processor, error) {
	processors := make([]monitoring.Processor, 0, len(location.Processors))

	for _, processor := range location.Processors {
		switch processor.Type {
		case "log":
			processors = append(processors, monitoring.NewLogProcessor(logger))
		case "archive":
			archive, err := registry.Resolve(processor.ArchiveProvider)
			if err != nil {
				return nil, fmt.Errorf("location %q: %w", location.Name, err)
			}

			processors = append(processors, monitoring.NewArchiveProcessor(provider, archive, processor.ArchiveRoot))
		}
	}

	return processors, nil
}
