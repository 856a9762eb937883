package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Run is one recorded analysis run.
type Run struct {
	ID           string
	CreatedAt    string
	Digest       string
	MaxDepth     int
	FilesScanned int
	Summary      map[string]any
}

// UpsertRun creates or updates a run record. CreatedAt defaults to now.
func (s *Store) UpsertRun(r *Run) error {
	created := r.CreatedAt
	if created == "" {
		created = Now()
	}
	_, err := s.q.Exec(`
		INSERT INTO runs (id, created_at, digest, max_depth, files_scanned, summary) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at=excluded.created_at, digest=excluded.digest,
			max_depth=excluded.max_depth, files_scanned=excluded.files_scanned, summary=excluded.summary`,
		r.ID, created, r.Digest, r.MaxDepth, r.FilesScanned, marshalProps(r.Summary))
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// GetRun returns a run by id, or nil, nil when there is none.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	var summary string
	err := s.q.QueryRow("SELECT id, created_at, digest, max_depth, files_scanned, summary FROM runs WHERE id=?", id).
		Scan(&r.ID, &r.CreatedAt, &r.Digest, &r.MaxDepth, &r.FilesScanned, &summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Summary = unmarshalProps(summary)
	return &r, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.q.Query("SELECT id, created_at, digest, max_depth, files_scanned, summary FROM runs ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var result []*Run
	for rows.Next() {
		var r Run
		var summary string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Digest, &r.MaxDepth, &r.FilesScanned, &summary); err != nil {
			return nil, err
		}
		r.Summary = unmarshalProps(summary)
		result = append(result, &r)
	}
	return result, rows.Err()
}

// DeleteRun deletes a run and everything recorded under it (CASCADE).
func (s *Store) DeleteRun(id string) error {
	_, err := s.q.Exec("DELETE FROM runs WHERE id=?", id)
	return err
}

// UpsertFileHash stores a scanned file's content hash.
func (s *Store) UpsertFileHash(runID, path, hash string) error {
	_, err := s.q.Exec(`
		INSERT INTO file_hashes (run_id, path, hash) VALUES (?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET hash=excluded.hash`,
		runID, path, hash)
	return err
}

// GetFileHashes returns path -> hash for a run.
func (s *Store) GetFileHashes(runID string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT path, hash FROM file_hashes WHERE run_id=?", runID)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// CallPath is a stored call path row. Chain holds the hops in order.
type CallPath struct {
	Seq           int
	Screen        string
	ServiceMethod string
	ClassName     string
	MethodName    string
	PathType      string
	Chain         []string
	FilePath      string
	Line          int
	Depth         int
	Confidence    float64
}

const callPathColumns = "seq, screen, service_method, class_name, method_name, path_type, call_chain, file_path, line_number, depth, confidence"

// InsertCallPaths records the paths of a run. Seq is taken from the slice
// position so reads return them in resolution order.
func (s *Store) InsertCallPaths(runID string, paths []CallPath) error {
	for i, p := range paths {
		chain, err := json.Marshal(p.Chain)
		if err != nil {
			return fmt.Errorf("encode chain: %w", err)
		}
		_, err = s.q.Exec(`INSERT INTO call_paths (run_id, `+callPathColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING`,
			runID, i, p.Screen, p.ServiceMethod, p.ClassName, p.MethodName, p.PathType,
			string(chain), p.FilePath, p.Line, p.Depth, p.Confidence)
		if err != nil {
			return fmt.Errorf("insert call path: %w", err)
		}
	}
	return nil
}

// CallPaths returns the paths of a run in resolution order. A non-empty screen
// restricts the result to that UI entity (case-insensitive).
func (s *Store) CallPaths(runID, screen string) ([]CallPath, error) {
	query := `SELECT ` + callPathColumns + ` FROM call_paths WHERE run_id=?`
	args := []any{runID}
	if screen != "" {
		query += ` AND lower(screen)=?`
		args = append(args, strings.ToLower(screen))
	}
	query += ` ORDER BY seq`

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("call paths: %w", err)
	}
	defer rows.Close()

	var result []CallPath
	for rows.Next() {
		var p CallPath
		var chain string
		if err := rows.Scan(&p.Seq, &p.Screen, &p.ServiceMethod, &p.ClassName, &p.MethodName, &p.PathType,
			&chain, &p.FilePath, &p.Line, &p.Depth, &p.Confidence); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chain), &p.Chain); err != nil {
			return nil, fmt.Errorf("decode chain: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
