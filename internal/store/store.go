// Package store persists analysis runs in SQLite: the entity graph as nodes
// and edges, the resolved call paths, and per-file content hashes. Each run is
// kept under its own run id so one database can hold a history of runs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection for run storage.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Node labels.
const (
	LabelEntity    = "Entity"
	LabelOperation = "Operation"
	LabelRoute     = "Route"
	LabelEndpoint  = "Endpoint"
)

// Node is one graph vertex of a run.
type Node struct {
	ID            int64
	RunID         string
	Label         string
	Name          string
	QualifiedName string
	Layer         string
	FilePath      string
	Line          int
	Properties    map[string]any
}

// Edge is one graph relation of a run.
type Edge struct {
	ID         int64
	RunID      string
	SourceID   int64
	TargetID   int64
	Type       string
	Line       int
	Properties map[string]any
}

// OpenPath opens or creates a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// every pooled connection would get its own empty :memory: database
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; the receiver's querier is
// never mutated, so concurrent readers keep using the plain connection.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path, or ":memory:".
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		digest TEXT NOT NULL DEFAULT '',
		max_depth INTEGER NOT NULL DEFAULT 0,
		files_scanned INTEGER NOT NULL DEFAULT 0,
		summary TEXT DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		PRIMARY KEY (run_id, path)
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		layer TEXT DEFAULT '',
		file_path TEXT DEFAULT '',
		line INTEGER DEFAULT 0,
		properties TEXT DEFAULT '{}',
		UNIQUE(run_id, qualified_name)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(run_id, label);
	CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(run_id, name);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		properties TEXT DEFAULT '{}',
		UNIQUE(source_id, target_id, type, line)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(run_id, type);

	CREATE TABLE IF NOT EXISTS call_paths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		screen TEXT NOT NULL,
		service_method TEXT NOT NULL,
		class_name TEXT NOT NULL,
		method_name TEXT NOT NULL,
		path_type TEXT NOT NULL,
		call_chain TEXT NOT NULL,
		file_path TEXT DEFAULT '',
		line_number INTEGER DEFAULT 0,
		depth INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_call_paths_screen ON call_paths(run_id, screen);
	CREATE INDEX IF NOT EXISTS idx_call_paths_class ON call_paths(run_id, class_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// marshalProps serializes properties to JSON.
func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// unmarshalProps deserializes JSON properties.
func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
