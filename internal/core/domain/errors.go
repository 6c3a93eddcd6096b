package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrWriteContention means optimistic retries on one document ran out.
	// It matches ErrStoreUnavailable for callers, but the backend itself is healthy.
	ErrWriteContention = fmt.Errorf("write contention: %w", ErrStoreUnavailable)
)
