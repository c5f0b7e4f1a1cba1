// Package store implements the semantic store (C7, spec §4.7): durable
// local persistence and query over an embedded SQLite database, one file
// per repository.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite connection for one repository's semantic events.
// Writers are serialized by mu (spec §4.7 "Concurrency": "a repository-level
// mutex"); the pool is limited to one open connection, so reads also run
// one at a time.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultPath returns <svcsDir>/semantic.db, creating svcsDir if needed.
func DefaultPath(svcsDir string) (string, error) {
	if err := os.MkdirAll(svcsDir, 0o755); err != nil {
		return "", fmt.Errorf("create svcs directory %s: %w", svcsDir, err)
	}
	return filepath.Join(svcsDir, "semantic.db"), nil
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // sqlite3 driver: one writer at a time regardless
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.conn.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS repository_info (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    repository_id  TEXT NOT NULL,
    name           TEXT,
    schema_version INTEGER NOT NULL,
    created_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS branches (
    name             TEXT PRIMARY KEY,
    last_commit_hash TEXT,
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS commits (
    hash       TEXT PRIMARY KEY,
    author     TEXT NOT NULL,
    branch     TEXT NOT NULL,
    message    TEXT,
    timestamp  INTEGER NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_commits_timestamp ON commits(timestamp);

CREATE TABLE IF NOT EXISTS semantic_events (
    event_id            TEXT PRIMARY KEY,
    commit_hash         TEXT NOT NULL REFERENCES commits(hash) ON DELETE CASCADE,
    branch               TEXT NOT NULL,
    author               TEXT NOT NULL,
    timestamp            INTEGER NOT NULL,
    event_type           TEXT NOT NULL,
    node_id              TEXT NOT NULL,
    location             TEXT NOT NULL,
    details              TEXT,
    layer                TEXT NOT NULL,
    layer_description    TEXT,
    confidence           REAL,
    reasoning            TEXT,
    impact               TEXT,
    merge_parent_index   INTEGER,
    notes_synced         INTEGER NOT NULL DEFAULT 0,
    created_at           TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_commit ON semantic_events(commit_hash);
CREATE INDEX IF NOT EXISTS idx_events_type ON semantic_events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_branch ON semantic_events(branch);
`

func (s *Store) migrate() error {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// PurgeRepository removes every row for this repository (spec §4.7:
// "remove all rows for this repository" — one database file per repository
// here, so this deletes every row of every data table and keeps the schema).
func (s *Store) PurgeRepository() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"semantic_events", "commits", "branches", "repository_info"}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin purge transaction: %w", err)
	}
	defer tx.Rollback()
	for _, t := range tables {
		if _, err := tx.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("purge table %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// CommitCount returns the number of commits recorded in the store, for
// `svcs status` (spec §6.3 "status").
func (s *Store) CommitCount() (int, error) {
	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM commits").Scan(&n); err != nil {
		return 0, fmt.Errorf("count commits: %w", err)
	}
	return n, nil
}

// EnsureRepositoryInfo idempotently records this repository's identity.
func (s *Store) EnsureRepositoryInfo(repositoryID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(
		`INSERT INTO repository_info (id, repository_id, name, schema_version)
		 VALUES (1, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET repository_id = excluded.repository_id, name = excluded.name`,
		repositoryID, name,
	)
	if err != nil {
		return fmt.Errorf("ensure repository info: %w", err)
	}
	return nil
}

// EnsureRepositoryID idempotently assigns this repository a stable surrogate
// id (spec §3 "Repository": "identified by its absolute working-tree path
// ... id, name"): the first call mints a fresh UUID and stores it alongside
// name; later calls (e.g. a repeated `svcs init`) keep the existing id and
// only refresh name, so the id survives reinitialization.
func (s *Store) EnsureRepositoryID(name string) (string, error) {
	s.mu.Lock()
	var existing sql.NullString
	err := s.conn.QueryRow("SELECT repository_id FROM repository_info WHERE id = 1").Scan(&existing)
	s.mu.Unlock()
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("read repository id: %w", err)
	}

	id := existing.String
	if !existing.Valid || existing.String == "" {
		id = uuid.NewString()
	}
	if err := s.EnsureRepositoryInfo(id, name); err != nil {
		return "", err
	}
	return id, nil
}
