package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresBackend stores entries in a single table, created on first use.
type PostgresBackend struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres connects to dsn through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresBackend(db), nil
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (s *PostgresBackend) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS bolt_module_cache (
  cache_key TEXT PRIMARY KEY,
  data BYTEA NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM bolt_module_cache WHERE cache_key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PostgresBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bolt_module_cache (cache_key, data)
VALUES ($1, $2)
ON CONFLICT (cache_key)
DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, key, data)
	return err
}

func (s *PostgresBackend) Delete(ctx context.Context, key string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM bolt_module_cache WHERE cache_key = $1`, key)
	return err
}

func (s *PostgresBackend) Clear(ctx context.Context) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM bolt_module_cache`)
	return err
}

// Close releases the database handle.
func (s *PostgresBackend) Close() error { return s.db.Close() }
