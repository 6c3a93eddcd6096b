package ports

import (
	"context"

	"reelhub/internal/core/domain"
)

// MutateFunc receives the current encoded document and returns the next one.
// Returning nil bytes with a nil error leaves the document untouched. The
// function may run more than once when a store retries on a version conflict,
// so it must not have side effects outside its return values.
type MutateFunc func(current []byte) ([]byte, error)

// DocumentStore is a key-value document store with atomic single-document writes.
type DocumentStore interface {
	// Create stores data under key, failing with domain.ErrConflict if the key exists.
	Create(ctx context.Context, key domain.DocumentKey, data []byte) error
	// Get fails with domain.ErrNotFound if the key is absent.
	Get(ctx context.Context, key domain.DocumentKey) ([]byte, error)
	// Update performs one atomic read-modify-write and returns the committed bytes.
	Update(ctx context.Context, key domain.DocumentKey, fn MutateFunc) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Codec encodes profile documents for the store.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
