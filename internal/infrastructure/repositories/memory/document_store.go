package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
)

// documentSlot serializes writers of a single document.
type documentSlot struct {
	mu   sync.Mutex
	data []byte
}

type MemoryDocumentStore struct {
	docs map[domain.DocumentKey]*documentSlot
	mu   sync.RWMutex
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[domain.DocumentKey]*documentSlot),
	}
}

var _ ports.DocumentStore = (*MemoryDocumentStore)(nil)

func (s *MemoryDocumentStore) slot(key domain.DocumentKey) (*documentSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.docs[key]
	return slot, ok
}

func (s *MemoryDocumentStore) Create(ctx context.Context, key domain.DocumentKey, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[key]; exists {
		return fmt.Errorf("document %s: %w", key, domain.ErrConflict)
	}

	s.docs[key] = &documentSlot{data: slices.Clone(data)}
	return nil
}

func (s *MemoryDocumentStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	slot, ok := s.slot(key)
	if !ok {
		return nil, fmt.Errorf("document %s: %w", key, domain.ErrNotFound)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slices.Clone(slot.data), nil
}

func (s *MemoryDocumentStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	slot, ok := s.slot(key)
	if !ok {
		return nil, fmt.Errorf("document %s: %w", key, domain.ErrNotFound)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	next, err := fn(slices.Clone(slot.data))
	if err != nil {
		return nil, err
	}
	if next == nil {
		return slices.Clone(slot.data), nil
	}

	slot.data = slices.Clone(next)
	return slices.Clone(slot.data), nil
}

func (s *MemoryDocumentStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryDocumentStore) Close() error {
	return nil
}

// Len reports how many documents are stored.
func (s *MemoryDocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
