package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - catalog and records tables
const currentSchemaVersion = 1

// maxIdleConns is how many reader connections stay open between calls.
// The reader pool itself is unbounded because every open transaction pins
// one connection until it ends. WAL lets those readers run alongside the
// single writer.
const maxIdleConns = 2

// uriPath escapes the characters SQLite's URI parser treats specially.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// fileURI builds a SQLite URI filename for path with query parameters q.
func fileURI(path string, q url.Values) string {
	return "file:" + uriPath.Replace(path) + "?" + q.Encode()
}

// Querier is the subset of *sql.DB and *sql.Tx used by record operations.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite database holding emdb records.
//
// It keeps two pools on the same file. db opens deferred transactions, so
// long-lived caller transactions only take the write lock once they write
// and read-only ones never do. writer holds one connection whose
// transactions begin immediate; Update uses it for short self-contained
// writes so they queue in Go instead of in SQLite's busy handler.
type Store struct {
	db      *sql.DB
	writer  *sql.DB
	path    string
	tempDir string // removed on Close; set for memory stores
}

// Open creates or opens a SQLite database at the given path.
// Applies the schema and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := openPool(path, false)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(maxIdleConns)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	writer, err := openPool(path, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	writer.SetMaxOpenConns(1)

	return &Store{db: db, writer: writer, path: path}, nil
}

func openPool(path string, immediate bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn(path, immediate))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// OpenMemory opens a private database that disappears on Close. It lives in
// a fresh temporary directory so pooled connections share it.
func OpenMemory() (*Store, error) {
	dir, err := os.MkdirTemp("", "emdb-mem-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	s, err := Open(filepath.Join(dir, "mem.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	s.tempDir = dir
	return s, nil
}

// Close closes the database. A memory store also removes its files.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.writer != nil {
		if wErr := s.writer.Close(); wErr != nil && err == nil {
			err = wErr
		}
	}
	if s.tempDir != "" {
		if rmErr := os.RemoveAll(s.tempDir); rmErr != nil && err == nil {
			err = fmt.Errorf("remove temp dir: %w", rmErr)
		}
	}
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Begin starts a deferred transaction. It reads from a snapshot and takes
// the write lock on its first write. The caller must Commit or Rollback it.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return begin(ctx, s.db)
}

func begin(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// Update runs fn on tx when it is non-nil. Otherwise it runs fn in a new
// transaction that commits when fn succeeds.
func (s *Store) Update(ctx context.Context, tx *sql.Tx, fn func(Querier) error) error {
	if tx != nil {
		return fn(tx)
	}

	own, err := begin(ctx, s.writer)
	if err != nil {
		return err
	}
	defer own.Rollback() // No-op if committed

	if err := fn(own); err != nil {
		return err
	}
	if err := own.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn on tx when it is non-nil, otherwise on the database.
func (s *Store) View(tx *sql.Tx, fn func(Querier) error) error {
	if tx != nil {
		return fn(tx)
	}
	return fn(s.db)
}

// Conn runs fn on one pooled connection, so connection state such as
// temporary tables lasts for the whole of fn.
func (s *Store) Conn(ctx context.Context, fn func(Querier) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations checks and records the schema version in user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d",
			version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
