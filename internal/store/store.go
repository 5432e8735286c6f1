// Package store persists symbol snapshots, daily and intraday bars and API
// telemetry in a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Environment tells the store whether a persistent file is available.
type Environment int

const (
	// Interactive runs against a SQLite file.
	Interactive Environment = iota
	// Headless has no persistent storage. Every read returns an empty result
	// and every write is dropped, without an error.
	Headless
)

func (e Environment) String() string {
	if e == Headless {
		return "headless"
	}
	return "interactive"
}

// ErrInvalidRecord is returned for records that lack their key.
var ErrInvalidRecord = errors.New("invalid record")

// TxError reports a multi-table write that was rolled back as a unit.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return fmt.Sprintf("%s: transaction rolled back: %v", e.Op, e.Err) }

func (e *TxError) Unwrap() error { return e.Err }

// Store is the persistent cache. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	env     Environment
	path    string
	version uint
	mu      sync.Mutex // serializes writes
}

// Open opens (or creates) the SQLite file at path and brings its schema up to
// date. A Headless store opens nothing.
func Open(path string, env Environment) (*Store, error) {
	if env == Headless {
		log.Println("[INFO] store running headless, nothing is persisted")
		return &Store{env: env}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	version, err := runMigrations(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s (schema v%d)", path, version)
	return &Store{db: db, env: env, path: path, version: version}, nil
}

// Environment returns the environment the store was opened in.
func (s *Store) Environment() Environment { return s.env }

// SchemaVersion returns the applied schema version, 0 when headless.
func (s *Store) SchemaVersion() uint { return s.version }

func (s *Store) headless() bool { return s.db == nil }

// Close releases the database.
func (s *Store) Close() error {
	if s.headless() {
		return nil
	}
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

// ClearAll removes every snapshot and bar. Telemetry is kept.
func (s *Store) ClearAll(ctx context.Context) error {
	if s.headless() {
		return nil
	}
	return s.withTx(ctx, "clear cache", func(tx *sql.Tx) error {
		for _, table := range []string{"symbols", "daily_bars", "intraday_bars"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// withTx runs fn in a write transaction. Any error rolls the whole
// transaction back and is returned as a *TxError.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &TxError{Op: op, Err: fmt.Errorf("begin: %w", err)}
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[ERROR] %s: rollback: %v", op, rbErr)
		}
		return &TxError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &TxError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
