package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
)

// RedisDocumentStore keeps each document as a single string value and applies
// updates with WATCH/MULTI, retrying when another writer touched the key.
type RedisDocumentStore struct {
	client     *redis.Client
	prefix     string
	attempts   uint
	retryDelay time.Duration
}

func NewRedisDocumentStore(client *redis.Client, attempts int, retryDelay time.Duration) *RedisDocumentStore {
	if attempts < 1 {
		attempts = 1
	}
	return &RedisDocumentStore{
		client:     client,
		prefix:     "reelhub:",
		attempts:   uint(attempts),
		retryDelay: retryDelay,
	}
}

var _ ports.DocumentStore = (*RedisDocumentStore)(nil)

func (r *RedisDocumentStore) documentKey(key domain.DocumentKey) string {
	return r.prefix + key.DocID + ":" + string(key.OwnerID)
}

func unavailable(op string, key domain.DocumentKey, err error) error {
	return fmt.Errorf("redis %s %s: %w: %v", op, key, domain.ErrStoreUnavailable, err)
}

func (r *RedisDocumentStore) Create(ctx context.Context, key domain.DocumentKey, data []byte) error {
	created, err := r.client.SetNX(ctx, r.documentKey(key), data, 0).Result()
	if err != nil {
		return unavailable("create", key, err)
	}
	if !created {
		return fmt.Errorf("document %s: %w", key, domain.ErrConflict)
	}
	return nil
}

func (r *RedisDocumentStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	data, err := r.client.Get(ctx, r.documentKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("document %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return data, nil
}

// abortError marks a failure that came from the caller's mutation rather
// than from redis, so it is returned as is.
type abortError struct {
	err error
}

func (e abortError) Error() string { return e.err.Error() }
func (e abortError) Unwrap() error { return e.err }

func (r *RedisDocumentStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	redisKey := r.documentKey(key)
	var committed []byte

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return abortError{fmt.Errorf("document %s: %w", key, domain.ErrNotFound)}
		}
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return abortError{err}
		}
		if next == nil {
			committed = current
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed = next
		return nil
	}

	err := retry.Do(
		func() error { return r.client.Watch(ctx, txf, redisKey) },
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, redis.TxFailedErr) }),
	)

	var abort abortError
	switch {
	case err == nil:
		return committed, nil
	case errors.As(err, &abort):
		return nil, abort.err
	case errors.Is(err, redis.TxFailedErr):
		return nil, fmt.Errorf("document %s: %w after %d attempts", key, domain.ErrWriteContention, r.attempts)
	default:
		return nil, unavailable("update", key, err)
	}
}

func (r *RedisDocumentStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisDocumentStore) Close() error {
	return CloseRedisClient(r.client)
}
