package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"device-layout/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteCache stores the preset list under one key of a local SQLite file.
type SQLiteCache struct {
	db  *sql.DB
	key string
}

func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLiteCache(ctx context.Context, db *sql.DB, key string) (*SQLiteCache, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating cache table: %w", err)
	}
	return &SQLiteCache{db: db, key: key}, nil
}

func (c *SQLiteCache) Name() string {
	return "sqlite"
}

func (c *SQLiteCache) Load(ctx context.Context) ([]domain.Preset, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, c.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading preset cache: %w", err)
	}
	return decode([]byte(value))
}

func (c *SQLiteCache) Store(ctx context.Context, presets []domain.Preset) error {
	data, err := encode(presets)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, c.key, string(data))
	if err != nil {
		return fmt.Errorf("writing preset cache: %w", err)
	}
	return nil
}
