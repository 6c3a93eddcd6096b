// Package sqlite provides a durable single-file document store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"

	"github.com/avast/retry-go/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var errVersionConflict = errors.New("document version changed")

// SQLiteDocumentStore guards each row with a version column and retries the
// read-modify-write when a concurrent writer bumped it first.
type SQLiteDocumentStore struct {
	db         *sql.DB
	attempts   uint
	retryDelay time.Duration
}

var _ ports.DocumentStore = (*SQLiteDocumentStore)(nil)

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string, attempts int, retryDelay time.Duration, logger *zap.SugaredLogger) (*SQLiteDocumentStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	if attempts < 1 {
		attempts = 1
	}
	return &SQLiteDocumentStore{db: db, attempts: uint(attempts), retryDelay: retryDelay}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		for _, r := range results {
			logger.Infow("applied migration", "version", r.Source.Version, "duration", r.Duration)
		}
	}
	return nil
}

func unavailable(op string, key domain.DocumentKey, err error) error {
	return fmt.Errorf("sqlite %s %s: %w: %v", op, key, domain.ErrStoreUnavailable, err)
}

func (s *SQLiteDocumentStore) Create(ctx context.Context, key domain.DocumentKey, data []byte) error {
	now := time.Now().UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_documents (owner_id, doc_id, body, version, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT (owner_id, doc_id) DO NOTHING`,
		string(key.OwnerID), key.DocID, data, now, now)
	if err != nil {
		return unavailable("create", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("create", key, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", key, domain.ErrConflict)
	}
	return nil
}

func (s *SQLiteDocumentStore) read(ctx context.Context, key domain.DocumentKey) ([]byte, int64, error) {
	var (
		body    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version FROM profile_documents WHERE owner_id = ? AND doc_id = ?`,
		string(key.OwnerID), key.DocID).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("document %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, 0, unavailable("get", key, err)
	}
	return body, version, nil
}

func (s *SQLiteDocumentStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	body, _, err := s.read(ctx, key)
	return body, err
}

func (s *SQLiteDocumentStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	var committed []byte

	attempt := func() error {
		current, version, err := s.read(ctx, key)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			committed = current
			return nil
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE profile_documents SET body = ?, version = version + 1, updated_at = ?
			 WHERE owner_id = ? AND doc_id = ? AND version = ?`,
			next, time.Now().UTC().UnixMilli(), string(key.OwnerID), key.DocID, version)
		if err != nil {
			return unavailable("update", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable("update", key, err)
		}
		if n == 0 {
			return errVersionConflict
		}
		committed = next
		return nil
	}

	err := retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errVersionConflict) }),
	)
	if errors.Is(err, errVersionConflict) {
		return nil, fmt.Errorf("document %s: %w after %d attempts", key, domain.ErrWriteContention, s.attempts)
	}
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *SQLiteDocumentStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}
