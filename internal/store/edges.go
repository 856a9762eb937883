package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const edgeColumns = "id, run_id, source_id, target_id, type, line, properties"

// InsertEdge inserts an edge (dedup by source, target, type and line).
func (s *Store) InsertEdge(e *Edge) (int64, error) {
	res, err := s.q.Exec(`
		INSERT INTO edges (run_id, source_id, target_id, type, line, properties)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type, line) DO UPDATE SET properties=excluded.properties`,
		e.RunID, e.SourceID, e.TargetID, e.Type, e.Line, marshalProps(e.Properties))
	if err != nil {
		return 0, fmt.Errorf("insert edge: %w", err)
	}
	return res.LastInsertId()
}

// FindEdgesBySource finds all edges from a given source node.
func (s *Store) FindEdgesBySource(sourceID int64) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE source_id=? ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTarget finds all edges to a given target node.
func (s *Store) FindEdgesByTarget(targetID int64) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE target_id=? ORDER BY id`, targetID)
	if err != nil {
		return nil, fmt.Errorf("find edges by target: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByType returns all edges of a given type for a run.
func (s *Store) FindEdgesByType(runID, edgeType string) ([]*Edge, error) {
	rows, err := s.q.Query(`SELECT `+edgeColumns+` FROM edges WHERE run_id=? AND type=? ORDER BY id`, runID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges in a run.
func (s *Store) CountEdges(runID string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE run_id=?", runID).Scan(&count)
	return count, err
}

// edgesBatchSize is the max rows per batch INSERT for edges (6 cols × 150 = 900 vars < 999).
const edgesBatchSize = 150

// InsertEdgeBatch inserts multiple edges in batched multi-row INSERTs.
func (s *Store) InsertEdgeBatch(edges []*Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := min(i+edgesBatchSize, len(edges))
		if err := s.insertEdgeChunk(edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertEdgeChunk(batch []*Edge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (run_id, source_id, target_id, type, line, properties) VALUES `)

	args := make([]any, 0, len(batch)*6)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?)")
		args = append(args, e.RunID, e.SourceID, e.TargetID, e.Type, e.Line, marshalProps(e.Properties))
	}
	sb.WriteString(` ON CONFLICT(source_id, target_id, type, line) DO UPDATE SET properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert edge batch: %w", err)
	}
	return nil
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var props string
		if err := rows.Scan(&e.ID, &e.RunID, &e.SourceID, &e.TargetID, &e.Type, &e.Line, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
