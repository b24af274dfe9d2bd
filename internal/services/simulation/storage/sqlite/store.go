// Package sqlite provides a SQLite-backed run store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitemigrate "github.com/leximpact/socio-fiscal-api/internal/platform/storage/sqlitemigrate"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists population runs in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.RunStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite run store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LookupRun returns the run recorded under cacheKey.
func (s *Store) LookupRun(ctx context.Context, cacheKey string) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}
	cacheKey = strings.TrimSpace(cacheKey)
	if cacheKey == "" {
		return storage.Run{}, fmt.Errorf("cache key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, kind, cache_key, reform, period, households, total, created_at
		   FROM runs
		  WHERE cache_key = ?`,
		cacheKey,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, storage.ErrNotFound
		}
		return storage.Run{}, fmt.Errorf("lookup run: %w", err)
	}
	return run, nil
}

// SaveRun records run and returns it with its id and creation time. Saving a
// cache key twice returns the first record.
func (s *Store) SaveRun(ctx context.Context, run storage.Run) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}
	run.Kind = strings.TrimSpace(run.Kind)
	run.CacheKey = strings.TrimSpace(run.CacheKey)
	if run.Kind == "" {
		return storage.Run{}, fmt.Errorf("run kind is required")
	}
	if run.CacheKey == "" {
		return storage.Run{}, fmt.Errorf("cache key is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	run.CreatedAt = fromMillis(toMillis(run.CreatedAt))

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO runs (
		   id,
		   kind,
		   cache_key,
		   reform,
		   period,
		   households,
		   total,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Kind,
		run.CacheKey,
		string(run.Reform),
		run.Period,
		run.Households,
		run.Total,
		toMillis(run.CreatedAt),
	)
	if err != nil {
		if isRunUniqueViolation(err) {
			return s.LookupRun(ctx, run.CacheKey)
		}
		return storage.Run{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, kind, cache_key, reform, period, households, total, created_at
		   FROM runs
		  ORDER BY created_at DESC, id ASC
		  LIMIT ?`,
		storage.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (storage.Run, error) {
	var run storage.Run
	var reform string
	var createdAt int64
	if err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.CacheKey,
		&reform,
		&run.Period,
		&run.Households,
		&run.Total,
		&createdAt,
	); err != nil {
		return storage.Run{}, err
	}
	if reform != "" {
		run.Reform = []byte(reform)
	}
	run.CreatedAt = fromMillis(createdAt)
	return run, nil
}

func isRunUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "runs.cache_key")
}
