package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// ClientOptions selects the redis server holding profile documents.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient dials the document store and verifies it answers a PING
// before returning. ctx bounds the initial handshake only.
func NewRedisClient(ctx context.Context, opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: min(2, opts.PoolSize),
		DialTimeout:  connectTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to document store at %s: %w", opts.Address, err)
	}

	if logger != nil {
		logger.Infow("document store connected",
			"driver", "redis",
			"address", opts.Address,
			"db", opts.DB,
		)
	}
	return client, nil
}

// CloseRedisClient releases the pool; a nil client is a no-op.
func CloseRedisClient(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
