// Package sqlite implements storage.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
//
// Records live in one table keyed by (tbl, id) with their fields as a JSON
// document. Query predicates compile to parameterized json_type/json_extract
// conditions; JSON paths and values are always bound, never spliced into SQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/poiesic/flowrun/storage"
)

// Store implements storage.Store for SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens or creates the database file and ensures the schema exists.
func NewStore(path string) (storage.Store, error) {
	return Open(path)
}

// Open opens or creates the database file, applies PRAGMAs and ensures the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers; conditional updates rely on it.
	db.SetMaxOpenConns(1)

	logger := slog.Default().With("component", "sqlite")
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-65536;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			logger.Debug("pragma not applied", "pragma", p, "error", err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates required tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
            tbl TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            PRIMARY KEY (tbl, id)
        );`,
		`CREATE TABLE IF NOT EXISTS flows (
            name TEXT PRIMARY KEY,
            priority INTEGER NOT NULL,
            seq INTEGER NOT NULL,
            data BLOB NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_flows_order ON flows(priority DESC, seq ASC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Ping(); err != nil {
		return storage.ErrStorageClosed
	}
	return s.db.Close()
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapClosed(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func wrapClosed(err error) error {
	if err != nil && err.Error() == "sql: database is closed" {
		return storage.ErrStorageClosed
	}
	return err
}
