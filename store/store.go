package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

// Store is the durable persistence layer described in §4.4. One Store
// wraps one *sql.DB for the lifetime of a process.
type Store struct {
	db *sql.DB

	// recompute deduplicates concurrent RecomputeScores calls for the
	// same version into a single pass. RecordInteraction does not go
	// through it; it updates the score inside its own transaction.
	recompute singleflight.Group
}

// Open opens or creates a SQLite database at path, creating parent
// directories as needed, and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	return newStore(db)
}

// OpenInMemory opens an in-memory database, primarily for tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory database: %w", err)
	}
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	// SQLite allows only one writer at a time; a single connection
	// avoids "database is locked" errors under concurrent writers
	// and matches the spec's "process-wide write lock is acceptable".
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorageErr("begin transaction", err)
	}
	// defer Rollback is a safe no-op once Commit has succeeded.
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapStorageErr("commit transaction", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
