package presetserver

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"device-layout/internal/domain"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("preset not found")

//go:embed migrations
var migrations embed.FS

// Open connects to the preset database. SQLite paths get their parent
// directory created.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := sql.Open(DriverSQLite, fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", dsn))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, nil

	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Repository stores presets in SQLite or Postgres.
type Repository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver, now: time.Now}
}

// Migrate applies every embedded migration for the repository's driver in
// file name order. Migrations are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	dir := "migrations/" + r.dialect()
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Preset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, settings, created_at, updated_at
		FROM presets
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying presets: %w", err)
	}
	defer rows.Close()

	presets := []domain.Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presets: %w", err)
	}
	return presets, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Preset, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, name, settings, created_at, updated_at
		FROM presets
		WHERE id = ?
	`), id)

	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preset{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) Create(ctx context.Context, name string, settings []domain.PlacedDevice) (domain.Preset, error) {
	if settings == nil {
		settings = []domain.PlacedDevice{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("encoding settings: %w", err)
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	ms := now.UnixMilli()

	var id int64
	err = r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO presets (name, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), name, string(raw), ms, ms).Scan(&id)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("inserting preset: %w", err)
	}

	return domain.Preset{
		ID:        id,
		Name:      name,
		Settings:  domain.CloneDevices(settings),
		CreatedAt: &now,
		UpdatedAt: &now,
	}, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM presets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting preset: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(s scanner) (domain.Preset, error) {
	var (
		p                domain.Preset
		settings         string
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.Name, &settings, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scanning preset: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return p, fmt.Errorf("decoding settings of preset %d: %w", p.ID, err)
	}
	if p.Settings == nil {
		p.Settings = []domain.PlacedDevice{}
	}

	createdAt := time.UnixMilli(created).UTC()
	updatedAt := time.UnixMilli(updated).UTC()
	p.CreatedAt = &createdAt
	p.UpdatedAt = &updatedAt
	return p, nil
}

func (r *Repository) dialect() string {
	if r.driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
