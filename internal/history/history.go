// Package history persists finished generation runs in SQLite.
//
// The schema is managed with golang-migrate from migrations embedded in the
// binary. Migrations run on their own connection because the migrate sqlite
// driver closes the connection it is given.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"img2imgd/internal/orchestrator"
	"img2imgd/pkg/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history: store is closed")

// MaxRecent caps the number of rows Recent returns.
const MaxRecent = 200

// Store records runs into a SQLite database file.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open creates the database file and its directory if needed, applies
// pending migrations and returns a ready store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}
	if err := migrateUp(path); err != nil {
		return nil, err
	}
	db, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func openConn(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}
	for _, q := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", q, err)
		}
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func migrateUp(path string) error {
	conn, err := openConn(path)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		conn.Close()
		return fmt.Errorf("history: migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		conn.Close()
		return fmt.Errorf("history: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("history: create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("history: apply migrations: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// RecordRun inserts one finished run. It implements orchestrator.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, rec orchestrator.RunRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, duration_ms, outcome, error, prompt, strength, steps, seed, guidance_scale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), rec.Outcome, rec.Error,
		rec.Params.Prompt, rec.Params.Strength, rec.Params.Steps, rec.Params.Seed, rec.Params.GuidanceScale,
	)
	if err != nil {
		return fmt.Errorf("history: insert run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. limit is clamped to
// [1, MaxRecent].
func (s *Store) Recent(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxRecent {
		limit = MaxRecent
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, duration_ms, outcome, error, prompt, strength, steps, seed, guidance_scale
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()
	out := make([]types.RunRecord, 0, limit)
	for rows.Next() {
		var (
			r         types.RunRecord
			startedMs int64
			durMs     int64
		)
		if err := rows.Scan(&r.ID, &startedMs, &durMs, &r.Outcome, &r.Error,
			&r.Params.Prompt, &r.Params.Strength, &r.Params.Steps, &r.Params.Seed, &r.Params.GuidanceScale); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAtUnix = time.UnixMilli(startedMs).Unix()
		r.DurationSeconds = float64(durMs) / 1000
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count runs: %w", err)
	}
	return n, nil
}

// Prune deletes runs that started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
