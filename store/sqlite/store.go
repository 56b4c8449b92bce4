// Package sqlite implements store.Store on SQLite through the Bun ORM.
// Timestamps are stored as second-precision UTC strings so SQLite's
// lexicographic ordering matches chronological order, which keeps the
// claim query a single indexed scan.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is the persisted timestamp format. Lexicographic order on
// this layout equals chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

var _ store.Store = (*Store)(nil)

// Store is a Bun ORM implementation of store.Store using the SQLite dialect.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
	ownsDB bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open creates a store backed by the SQLite database at path. Use
// "file::memory:?cache=shared" for an in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("queued/sqlite: open %s: %w", path, err)
	}
	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// under concurrent claimers.
	sqldb.SetMaxOpenConns(1)

	s := New(bun.NewDB(sqldb, sqlitedialect.New()), opts...)
	s.ownsDB = true
	return s, nil
}

// New creates a store from an existing *bun.DB. The caller owns the db
// lifecycle — the Store will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS queued_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return storageError("create migrations table", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return storageError("read migrations", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM queued_migrations WHERE filename = ?)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return storageError("check migration "+entry.Name(), err)
		}
		if applied {
			continue
		}

		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return storageError("read migration "+entry.Name(), readErr)
		}
		if _, execErr := s.db.ExecContext(ctx, string(data)); execErr != nil {
			return storageError("execute migration "+entry.Name(), execErr)
		}
		if _, recErr := s.db.ExecContext(ctx,
			`INSERT INTO queued_migrations (filename) VALUES (?)`, entry.Name(),
		); recErr != nil {
			return storageError("record migration "+entry.Name(), recErr)
		}

		s.logger.Info("applied migration", "file", entry.Name())
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database when the Store opened it; otherwise it is a
// no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks for a SQLite unique constraint violation. Both
// the cgo and pure-Go drivers behind sqliteshim surface it only through
// the error text.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func storageError(op string, err error) error {
	return fmt.Errorf("queued/sqlite: %s: %w: %w", op, queued.ErrStorage, err)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("queued/sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nowString() string {
	return time.Now().UTC().Truncate(time.Second).Format(timeLayout)
}
