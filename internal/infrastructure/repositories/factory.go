package repositories

import (
	"context"
	"fmt"

	"reelhub/internal/core/ports"
	"reelhub/internal/infrastructure/codec"
	"reelhub/internal/infrastructure/reliability"
	"reelhub/internal/infrastructure/repositories/memory"
	redisrepo "reelhub/internal/infrastructure/repositories/redis"
	"reelhub/internal/infrastructure/repositories/sqlite"
	"reelhub/pkg/config"

	"go.uber.org/zap"
)

// RepositoryFactory opens the configured document store, falling back to
// memory when allowed.
type RepositoryFactory struct {
	driver string
	store  ports.DocumentStore
	codec  ports.Codec
	logger *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	docCodec, err := codec.New(cfg.Store.Codec)
	if err != nil {
		return nil, err
	}

	factory := &RepositoryFactory{
		driver: cfg.Store.Driver,
		codec:  docCodec,
		logger: logger,
	}

	store, err := factory.open(ctx, cfg)
	if err != nil {
		if !cfg.Store.FallbackToMemory {
			return nil, err
		}
		logger.Warnw("failed to open document store, falling back to memory",
			"driver", cfg.Store.Driver,
			"error", err,
		)
		factory.driver = config.StoreMemory
		store = memory.NewMemoryDocumentStore()
	}

	// The in-process store never reports unavailability.
	if factory.driver != config.StoreMemory && cfg.Store.CircuitBreaker.Enabled {
		store = reliability.NewBreakerStore(
			store,
			cfg.Store.CircuitBreaker.FailureThreshold,
			cfg.Store.CircuitBreaker.OpenTimeout,
			logger,
		)
	}
	factory.store = store

	logger.Infow("using document store", "driver", factory.driver, "codec", docCodec.Name())
	return factory, nil
}

func (f *RepositoryFactory) open(ctx context.Context, cfg *config.Config) (ports.DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return memory.NewMemoryDocumentStore(), nil

	case config.StoreRedis:
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientOptions{
			Address:  cfg.Store.Redis.Address,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			PoolSize: cfg.Store.Redis.PoolSize,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		if err := redisrepo.Migrate(ctx, client, f.codec.Name(), f.logger); err != nil {
			_ = redisrepo.CloseRedisClient(client)
			return nil, err
		}
		return redisrepo.NewRedisDocumentStore(client, cfg.Store.RetryAttempts, cfg.Store.RetryDelay), nil

	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.Store.SQLite.Path, cfg.Store.RetryAttempts, cfg.Store.RetryDelay, f.logger)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (f *RepositoryFactory) DocumentStore() ports.DocumentStore {
	return f.store
}

func (f *RepositoryFactory) Codec() ports.Codec {
	return f.codec
}

// Driver reports the store actually in use, after any fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

// Close closes the underlying store connection
func (f *RepositoryFactory) Close() error {
	if f.store != nil {
		return f.store.Close()
	}
	return nil
}
