package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// BreakerStore wraps a DocumentStore with a circuit breaker. Only
// domain.ErrStoreUnavailable counts as a failure; NotFound, Conflict and
// write contention on a single document mean the backend answered.
type BreakerStore struct {
	store   ports.DocumentStore
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

var _ ports.DocumentStore = (*BreakerStore)(nil)

// NewBreakerStore opens the breaker after failureThreshold consecutive
// unavailable errors and probes again after openTimeout.
func NewBreakerStore(store ports.DocumentStore, failureThreshold int, openTimeout time.Duration, logger *zap.SugaredLogger) *BreakerStore {
	cfg := circuitbreaker.DefaultConfig()
	cfg.FailureThreshold = failureThreshold
	cfg.Timeout = openTimeout
	cfg.IsFailure = func(err error) bool {
		return errors.Is(err, domain.ErrStoreUnavailable) && !errors.Is(err, domain.ErrWriteContention)
	}

	breaker := circuitbreaker.New(cfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		if to == circuitbreaker.StateOpen {
			logger.Warnw("document store circuit opened", "from", from.String())
			return
		}
		logger.Infow("document store circuit state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &BreakerStore{store: store, breaker: breaker, logger: logger}
}

func (s *BreakerStore) Create(ctx context.Context, key domain.DocumentKey, data []byte) error {
	return s.unavailableIfOpen(s.breaker.Execute(ctx, func() error {
		return s.store.Create(ctx, key, data)
	}))
}

func (s *BreakerStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	data, err := circuitbreaker.Do(ctx, s.breaker, func() ([]byte, error) {
		return s.store.Get(ctx, key)
	})
	return data, s.unavailableIfOpen(err)
}

func (s *BreakerStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	data, err := circuitbreaker.Do(ctx, s.breaker, func() ([]byte, error) {
		return s.store.Update(ctx, key, fn)
	})
	return data, s.unavailableIfOpen(err)
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *BreakerStore) Close() error {
	return s.store.Close()
}

// State reports the breaker state.
func (s *BreakerStore) State() circuitbreaker.State {
	return s.breaker.GetState()
}

func (s *BreakerStore) unavailableIfOpen(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
