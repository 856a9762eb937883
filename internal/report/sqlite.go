package report

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/graph"
	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/store"
)

// WriteSQLite records the run in the database at path, creating it when
// missing. Earlier runs in the same file are kept.
func WriteSQLite(path string, res *pipeline.Result) error {
	s, err := store.OpenPath(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.WithTransaction(func(tx *store.Store) error {
		return Record(tx, res)
	})
}

// Record writes one run: the run row, file hashes, the entity graph and the
// resolved call paths.
func Record(s *store.Store, res *pipeline.Result) error {
	summary, err := summaryProps(res)
	if err != nil {
		return err
	}
	if err := s.UpsertRun(&store.Run{
		ID:           res.RunID,
		Digest:       res.Digest,
		MaxDepth:     res.Summary.MaxDepth,
		FilesScanned: res.Summary.FilesScanned,
		Summary:      summary,
	}); err != nil {
		return err
	}

	for _, e := range res.Entities {
		if err := s.UpsertFileHash(res.RunID, e.FilePath, e.ContentHash); err != nil {
			return fmt.Errorf("file hash: %w", err)
		}
	}

	nodes, edges := graphRows(res.Graph)
	ids, err := s.UpsertNodeBatch(res.RunID, nodes)
	if err != nil {
		return err
	}
	rows := make([]*store.Edge, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, &store.Edge{
			RunID:      res.RunID,
			SourceID:   ids[e.from],
			TargetID:   ids[e.to],
			Type:       string(e.edge.Type),
			Line:       e.edge.Line,
			Properties: map[string]any{"resolved": e.edge.Resolved},
		})
	}
	if err := s.InsertEdgeBatch(rows); err != nil {
		return err
	}

	paths := make([]store.CallPath, len(res.Paths))
	for i, p := range res.Paths {
		paths[i] = store.CallPath{
			Screen:        p.Screen,
			ServiceMethod: p.ServiceMethod,
			ClassName:     p.ClassName,
			MethodName:    p.MethodName,
			PathType:      string(p.PathType),
			Chain:         p.Chain,
			FilePath:      p.FilePath,
			Line:          p.Line,
			Depth:         p.Depth,
			Confidence:    p.Confidence,
		}
	}
	if err := s.InsertCallPaths(res.RunID, paths); err != nil {
		return err
	}
	slog.Info("report.sqlite", "run", res.RunID, "nodes", len(nodes), "edges", len(rows), "paths", len(paths))
	return nil
}

func summaryProps(res *pipeline.Result) (map[string]any, error) {
	b, err := json.Marshal(res.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return m, nil
}

type edgeRow struct {
	edge     graph.Edge
	from, to string
}

// graphRows flattens the graph into nodes keyed by qualified name and edges
// between those keys. Qualified names are "layer:Entity[.Operation]" for
// declarations, "call:VERB path" for outbound calls and "route:template" for
// route templates.
func graphRows(g *graph.Graph) ([]*store.Node, []edgeRow) {
	var nodes []*store.Node
	seen := make(map[string]bool)
	add := func(n *store.Node) string {
		if !seen[n.QualifiedName] {
			seen[n.QualifiedName] = true
			nodes = append(nodes, n)
		}
		return n.QualifiedName
	}

	entities := append(g.FrontendEntities(), g.BackendEntities()...)
	for _, e := range entities {
		add(entityNode(e))
		for _, op := range e.Operations {
			add(&store.Node{
				Label:         store.LabelOperation,
				Name:          op.Name,
				QualifiedName: string(e.Layer) + ":" + e.Name + "." + op.Name,
				Layer:         string(e.Layer),
				FilePath:      e.FilePath,
				Line:          op.Line,
				Properties:    map[string]any{"return_type": op.ReturnType, "params": op.Params},
			})
		}
	}

	var edges []edgeRow
	for _, ge := range g.Edges() {
		layer := string(ge.Layer)
		var from, to string
		switch ge.Type {
		case graph.EdgeInvokes, graph.EdgeHTTPCalls:
			from = layer + ":" + ge.From
			if ge.Operation != "" {
				from += "." + ge.Operation
			}
			if !seen[from] {
				from = layer + ":" + ge.From
			}
			if ge.Type == graph.EdgeInvokes {
				to = add(&store.Node{
					Label:         store.LabelOperation,
					Name:          ge.To,
					QualifiedName: layer + ":" + ge.To,
					Layer:         layer,
					Properties:    map[string]any{"declared": false},
				})
			} else {
				to = add(&store.Node{Label: store.LabelEndpoint, Name: ge.To, QualifiedName: "call:" + ge.To, Layer: layer})
			}
		case graph.EdgeHandles:
			from = add(&store.Node{Label: store.LabelRoute, Name: ge.From, QualifiedName: "route:" + ge.From, Layer: layer})
			to = layer + ":" + ge.To
			if !seen[to] {
				to = add(&store.Node{Label: store.LabelOperation, Name: ge.To, QualifiedName: to, Layer: layer})
			}
		}
		edges = append(edges, edgeRow{edge: ge, from: from, to: to})
	}
	return nodes, edges
}

func entityNode(e *extract.Entity) *store.Node {
	props := map[string]any{"kind": string(e.Kind), "content_hash": e.ContentHash}
	if e.RoutePrefix != "" {
		props["route_prefix"] = e.RoutePrefix
	}
	return &store.Node{
		Label:         store.LabelEntity,
		Name:          e.Name,
		QualifiedName: string(e.Layer) + ":" + e.Name,
		Layer:         string(e.Layer),
		FilePath:      e.FilePath,
		Properties:    props,
	}
}
