// Package sqlite implements storage.Storage on top of database/sql and the
// pure Go ncruces/go-sqlite3 driver, the teacher's storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/metrics"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
)

// Store is the sqlite-backed storage.Storage implementation.
type Store struct {
	db *sql.DB
}

var _ storage.Storage = (*Store)(nil)

// Open connects to the database at cfg.Path, applies pragmas for
// concurrent readers/single writer operation, and runs the schema
// migration.
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	// _txlock=immediate makes every db.BeginTx acquire SQLite's RESERVED
	// lock up front (BEGIN IMMEDIATE), rather than lazily upgrading from a
	// deferred read lock on first write.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_txlock=immediate", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTransaction opens a transaction that, thanks to the store's
// _txlock=immediate DSN setting, acquires SQLite's write lock up front
// (BEGIN IMMEDIATE) rather than upgrading lazily on first write. This is
// what lets the write_lock primitive (a no-op self-update) serialise
// concurrent derived-state recomputes.
const maxBeginRetries = 5

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	var tx *sql.Tx
	var err error
	for attempt := 0; ; attempt++ {
		tx, err = s.db.BeginTx(ctx, nil)
		if err == nil || !isBusyErr(err) || attempt >= maxBeginRetries {
			break
		}
		metrics.WriteConflictRetries.Inc()
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	if err != nil {
		if isBusyErr(err) {
			return kinderr.Wrap(kinderr.KindWriteConflict, "could not acquire the write lock", err)
		}
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// isBusyErr reports whether err is SQLite's "database is locked" condition,
// the one BeginTx failure worth retrying rather than surfacing immediately
// (busy_timeout already covers most of this; this is the backstop for
// contention that outlasts it).
func isBusyErr(err error) bool {
	return strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked")
}
