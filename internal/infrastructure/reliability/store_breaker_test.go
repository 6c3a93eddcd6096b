package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/internal/infrastructure/repositories/memory"
	"reelhub/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flakyStore fails every call with ErrStoreUnavailable while down is set.
type flakyStore struct {
	ports.DocumentStore
	down  bool
	calls int
}

func (f *flakyStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	f.calls++
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
	}
	return f.DocumentStore.Get(ctx, key)
}

func TestBreakerStore_OpensOnUnavailable(t *testing.T) {
	backend := &flakyStore{DocumentStore: memory.NewMemoryDocumentStore(), down: true}
	store := NewBreakerStore(backend, 2, 50*time.Millisecond, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	key := domain.ProfileKey("u1", domain.VariantViewer)

	for i := 0; i < 2; i++ {
		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, store.State())

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, backend.calls, "open breaker must not reach the backend")

	backend.down = false
	time.Sleep(60 * time.Millisecond)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, circuitbreaker.StateClosed, store.State())
}

// contendedStore loses every optimistic write race on one owner.
type contendedStore struct {
	ports.DocumentStore
	hot domain.UserID
}

func (c *contendedStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	if key.OwnerID == c.hot {
		return nil, fmt.Errorf("document %s: %w after 10 attempts", key, domain.ErrWriteContention)
	}
	return c.DocumentStore.Update(ctx, key, fn)
}

func TestBreakerStore_WriteContentionDoesNotTrip(t *testing.T) {
	backend := &contendedStore{DocumentStore: memory.NewMemoryDocumentStore(), hot: "hot"}
	store := NewBreakerStore(backend, 2, time.Minute, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	hot := domain.ProfileKey("hot", domain.VariantCurator)
	other := domain.ProfileKey("other-user", domain.VariantCurator)
	require.NoError(t, store.Create(ctx, hot, []byte(`{}`)))
	require.NoError(t, store.Create(ctx, other, []byte(`{}`)))

	touch := func(current []byte) ([]byte, error) { return []byte(`{"n":1}`), nil }
	for i := 0; i < 5; i++ {
		_, err := store.Update(ctx, hot, touch)
		require.ErrorIs(t, err, domain.ErrWriteContention)
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.Equal(t, circuitbreaker.StateClosed, store.State())

	got, err := store.Update(ctx, other, touch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))
}

func TestBreakerStore_DomainErrorsDoNotTrip(t *testing.T) {
	store := NewBreakerStore(memory.NewMemoryDocumentStore(), 1, time.Minute, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	key := domain.ProfileKey("c1", domain.VariantCurator)

	require.NoError(t, store.Create(ctx, key, []byte(`{}`)))
	for i := 0; i < 3; i++ {
		err := store.Create(ctx, key, []byte(`{}`))
		require.ErrorIs(t, err, domain.ErrConflict)
		assert.False(t, errors.Is(err, circuitbreaker.ErrOpen))
	}

	got, err := store.Update(ctx, key, func(current []byte) ([]byte, error) {
		return []byte(`{"n":1}`), nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))
	assert.Equal(t, circuitbreaker.StateClosed, store.State())
	assert.NoError(t, store.Ping(ctx))
}
