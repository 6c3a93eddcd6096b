package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = "reelhub:schema:version"
	schemaCodecKey       = "reelhub:schema:codec"
	currentSchemaVersion = 1
)

// Migration represents a keyspace migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, codec string) error
}

// Migrate brings the keyspace to the current schema version and verifies
// that existing documents were written with the configured codec.
func Migrate(ctx context.Context, client *redis.Client, codec string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client, codec); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := client.Set(ctx, schemaVersionKey, migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	stored, err := client.Get(ctx, schemaCodecKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read document codec: %w", err)
	}
	if stored != codec {
		return fmt.Errorf("documents are encoded with %q, configured codec is %q", stored, codec)
	}

	if logger != nil {
		logger.Infow("schema is up to date",
			"version", currentSchemaVersion,
			"codec", codec,
		)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Pins the document codec for the lifetime of the keyspace.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, codec string) error {
				return client.SetNX(ctx, schemaCodecKey, codec, 0).Err()
			},
		},
	}
}
