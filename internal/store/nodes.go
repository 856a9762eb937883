package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const nodeColumns = "id, run_id, label, name, qualified_name, layer, file_path, line, properties"

// UpsertNode inserts or replaces a node (dedup by run and qualified_name).
func (s *Store) UpsertNode(n *Node) (int64, error) {
	res, err := s.q.Exec(`
		INSERT INTO nodes (run_id, label, name, qualified_name, layer, file_path, line, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, qualified_name) DO UPDATE SET
			label=excluded.label, name=excluded.name, layer=excluded.layer,
			file_path=excluded.file_path, line=excluded.line, properties=excluded.properties`,
		n.RunID, n.Label, n.Name, n.QualifiedName, n.Layer, n.FilePath, n.Line, marshalProps(n.Properties))
	if err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	// On conflict, LastInsertId may return 0; query the actual id
	if id == 0 {
		err = s.q.QueryRow("SELECT id FROM nodes WHERE run_id=? AND qualified_name=?", n.RunID, n.QualifiedName).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("get node id: %w", err)
		}
	}
	return id, nil
}

// FindNodeByQN finds a node by run and qualified name. It returns nil, nil
// when there is none.
func (s *Store) FindNodeByQN(runID, qualifiedName string) (*Node, error) {
	row := s.q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE run_id=? AND qualified_name=?`, runID, qualifiedName)
	return scanNode(row)
}

// FindNodesByName finds nodes by run and name.
func (s *Store) FindNodesByName(runID, name string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE run_id=? AND name=? ORDER BY id`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByLabel finds all nodes with a given label in a run.
func (s *Store) FindNodesByLabel(runID, label string) ([]*Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE run_id=? AND label=? ORDER BY id`, runID, label)
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a run.
func (s *Store) CountNodes(runID string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE run_id=?", runID).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.RunID, &n.Label, &n.Name, &n.QualifiedName, &n.Layer, &n.FilePath, &n.Line, &props)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numNodeCols = 8
const nodesBatchSize = 999 / numNodeCols // = 124

// UpsertNodeBatch inserts or updates nodes in batched multi-row INSERTs. All
// nodes must belong to the same run. Returns qualifiedName -> ID.
func (s *Store) UpsertNodeBatch(runID string, nodes []*Node) (map[string]int64, error) {
	result := make(map[string]int64, len(nodes))
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := min(i+nodesBatchSize, len(nodes))
		if err := s.upsertNodeChunk(runID, nodes[i:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) upsertNodeChunk(runID string, batch []*Node, idMap map[string]int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (run_id, label, name, qualified_name, layer, file_path, line, properties) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	qns := make([]string, 0, len(batch))
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, runID, n.Label, n.Name, n.QualifiedName, n.Layer, n.FilePath, n.Line, marshalProps(n.Properties))
		qns = append(qns, n.QualifiedName)
	}
	sb.WriteString(` ON CONFLICT(run_id, qualified_name) DO UPDATE SET
		label=excluded.label, name=excluded.name, layer=excluded.layer,
		file_path=excluded.file_path, line=excluded.line, properties=excluded.properties`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("upsert node batch: %w", err)
	}
	return s.resolveNodeIDs(runID, qns, idMap)
}

// resolveNodeIDs fetches IDs for a set of qualified names in a single run.
// The chunk is bounded by nodesBatchSize so the IN clause stays under 999.
func (s *Store) resolveNodeIDs(runID string, qns []string, idMap map[string]int64) error {
	placeholders := make([]string, len(qns))
	args := make([]any, 0, len(qns)+1)
	args = append(args, runID)
	for j, qn := range qns {
		placeholders[j] = "?"
		args = append(args, qn)
	}

	query := fmt.Sprintf("SELECT id, qualified_name FROM nodes WHERE run_id = ? AND qualified_name IN (%s)",
		strings.Join(placeholders, ","))

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return fmt.Errorf("resolve node IDs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var qn string
		if err := rows.Scan(&id, &qn); err != nil {
			return err
		}
		idMap[qn] = id
	}
	return rows.Err()
}
