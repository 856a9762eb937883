package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/report"
	"github.com/DeusData/callpath-mapper/internal/resolve"
	"github.com/DeusData/callpath-mapper/internal/store"
)

const (
	defaultPathLimit = 200
	maxPathLimit     = 1000
)

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	opts := s.opts.Defaults
	frontend := getStringsArg(args, "frontend")
	backend := getStringsArg(args, "backend")
	roots := getStringsArg(args, "roots")
	if len(frontend)+len(backend)+len(roots) > 0 {
		opts.Frontend, opts.Backend, opts.Roots = frontend, backend, roots
	}
	if len(opts.Frontend)+len(opts.Backend)+len(opts.Roots) == 0 {
		return errResult("frontend/backend or roots is required"), nil
	}
	if _, ok := args["max_depth"]; ok {
		depth := getIntArg(args, "max_depth", resolve.DefaultMaxDepth)
		if depth < 0 {
			return errResult("max_depth must be >= 0"), nil
		}
		opts.MaxDepth = depth
	}
	if include, ok := getBoolArg(args, "include_tests"); ok {
		opts.ExcludeTests = !include
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := pipeline.New(ctx, opts).Run()
	if err != nil {
		if errors.Is(err, pipeline.ErrRootInaccessible) {
			return errResult(err.Error()), nil
		}
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	s.last = res

	if s.store != nil {
		if err := s.store.WithTransaction(func(tx *store.Store) error { return report.Record(tx, res) }); err != nil {
			slog.Warn("tools.record", "run", res.RunID, "err", err)
		}
	}

	paths := res.Paths
	if screen := getStringArg(args, "screen"); screen != "" {
		paths = filterScreen(paths, screen)
	}
	limit := getIntArg(args, "limit", defaultPathLimit)
	if limit <= 0 {
		limit = defaultPathLimit
	}
	limit = min(limit, maxPathLimit)
	truncated := len(paths) > limit
	if truncated {
		paths = paths[:limit]
	}
	if paths == nil {
		paths = []resolve.CallPath{}
	}

	return jsonResult(map[string]any{
		"summary":     res.Summary,
		"paths":       paths,
		"truncated":   truncated,
		"warnings":    res.Warnings,
		"digest":      res.Digest,
		"duration_ms": res.Duration.Milliseconds(),
	}), nil
}

func filterScreen(paths []resolve.CallPath, screen string) []resolve.CallPath {
	var out []resolve.CallPath
	for _, p := range paths {
		if strings.EqualFold(p.Screen, screen) {
			out = append(out, p)
		}
	}
	return out
}

type routeInfo struct {
	Template  string `json:"template"`
	Verb      string `json:"verb,omitempty"`
	Operation string `json:"operation"`
	Line      int    `json:"line"`
}

type entityInfo struct {
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	Layer         string      `json:"layer"`
	FilePath      string      `json:"file_path"`
	RoutePrefix   string      `json:"route_prefix,omitempty"`
	Operations    []string    `json:"operations"`
	Dependencies  []string    `json:"dependencies,omitempty"`
	NetworkCalls  []string    `json:"network_calls,omitempty"`
	Routes        []routeInfo `json:"routes,omitempty"`
	Collaborators []string    `json:"invokes,omitempty"`
}

func newEntityInfo(e *extract.Entity) entityInfo {
	info := entityInfo{
		Name:        e.Name,
		Kind:        string(e.Kind),
		Layer:       string(e.Layer),
		FilePath:    e.FilePath,
		RoutePrefix: e.RoutePrefix,
		Operations:  e.OperationNames(),
	}
	for _, d := range e.Dependencies {
		info.Dependencies = append(info.Dependencies, d.Name)
	}
	for _, c := range e.NetworkCalls {
		info.NetworkCalls = append(info.NetworkCalls, c.Label())
	}
	for _, rb := range e.Routes {
		info.Routes = append(info.Routes, routeInfo{Template: rb.Template, Verb: rb.Verb, Operation: rb.Operation, Line: rb.Line})
	}
	for _, inv := range e.Invocations {
		info.Collaborators = append(info.Collaborators, inv.Target())
	}
	return info
}

func (s *Server) handleListEntities(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	res := s.lastResult()
	if res == nil {
		return errResult("no analysis yet: call analyze_call_paths first"), nil
	}

	layer := strings.ToLower(getStringArg(args, "layer"))
	kind := strings.ToLower(getStringArg(args, "kind"))
	name := strings.ToLower(getStringArg(args, "name"))

	entities := append(res.Graph.FrontendEntities(), res.Graph.BackendEntities()...)
	out := make([]entityInfo, 0, len(entities))
	for _, e := range entities {
		if layer != "" && string(e.Layer) != layer {
			continue
		}
		if kind != "" && string(e.Kind) != kind {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		out = append(out, newEntityInfo(e))
	}
	return jsonResult(map[string]any{
		"run_id":   res.RunID,
		"count":    len(out),
		"entities": out,
	}), nil
}

func (s *Server) handleListRuns(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errResult("no database configured: start the server with --db"), nil
	}
	runs, err := s.store.ListRuns()
	if err != nil {
		return errResult(fmt.Sprintf("list runs: %v", err)), nil
	}

	type runInfo struct {
		ID        string         `json:"id"`
		CreatedAt string         `json:"created_at"`
		Digest    string         `json:"digest"`
		MaxDepth  int            `json:"max_depth"`
		Files     int            `json:"files_scanned"`
		Nodes     int            `json:"nodes"`
		Edges     int            `json:"edges"`
		Summary   map[string]any `json:"summary"`
	}

	result := make([]runInfo, 0, len(runs))
	for _, r := range runs {
		nc, _ := s.store.CountNodes(r.ID)
		ec, _ := s.store.CountEdges(r.ID)
		result = append(result, runInfo{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			Digest:    r.Digest,
			MaxDepth:  r.MaxDepth,
			Files:     r.FilesScanned,
			Nodes:     nc,
			Edges:     ec,
			Summary:   r.Summary,
		})
	}
	return jsonResult(result), nil
}
