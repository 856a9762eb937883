// Package resolve enumerates call paths from UI entities to backend
// operations over a built graph.
package resolve

import (
	"log/slog"

	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/graph"
	"github.com/DeusData/callpath-mapper/internal/httplink"
)

// DefaultMaxDepth bounds the collaborator walk when nothing else is configured.
const DefaultMaxDepth = 5

// PathType tags a CallPath.
type PathType string

const (
	Direct   PathType = "direct"
	Indirect PathType = "indirect"
)

// CallPath is one resolved chain from a UI entity to a backend operation.
type CallPath struct {
	Screen        string   `json:"screen"`
	ServiceMethod string   `json:"service_method"` // "VERB path" when direct, first "Collaborator.method" hop when indirect
	ClassName     string   `json:"class_name"`
	MethodName    string   `json:"method_name"`
	PathType      PathType `json:"path_type"`
	Chain         []string `json:"call_chain"`
	FilePath      string   `json:"file_path"`
	Line          int      `json:"line_number"`
	Depth         int      `json:"depth"`
	Confidence    float64  `json:"confidence"`
}

// Resolve returns every direct and indirect path, entity by entity in
// registration order. A negative maxDepth is treated as 0.
func Resolve(g *graph.Graph, maxDepth int) []CallPath {
	var out []CallPath
	for _, e := range g.FrontendEntities() {
		out = append(out, ResolveEntity(g, e, maxDepth)...)
	}
	return out
}

// ResolveEntity returns the direct paths of e followed by its indirect paths.
func ResolveEntity(g *graph.Graph, e *extract.Entity, maxDepth int) []CallPath {
	paths := directPaths(g, e)
	paths = append(paths, indirectPaths(g, e, maxDepth)...)
	slog.Debug("resolve.entity", "name", e.Name, "paths", len(paths))
	return paths
}

func directPaths(g *graph.Graph, e *extract.Entity) []CallPath {
	var out []CallPath
	for _, call := range e.NetworkCalls {
		for _, m := range g.MatchRoutes(call.Path) {
			out = append(out, CallPath{
				Screen:        e.Name,
				ServiceMethod: call.Label(),
				ClassName:     m.Entity.Name,
				MethodName:    m.Binding.Operation,
				PathType:      Direct,
				Chain:         []string{e.Name, call.Label(), m.Target()},
				FilePath:      e.FilePath,
				Line:          call.Line,
				Depth:         0,
				Confidence:    httplink.Score(call.Path, m.Binding.Template, call.Verb, m.Binding.Verb),
			})
		}
	}
	return out
}

// frontier is a pending step of the collaborator walk.
type frontier struct {
	name      string
	chain     []string
	depth     int // collaborator hops already taken
	firstHop  string
	firstLine int
}

// indirectPaths walks invocation edges breadth-first from start. An item
// popped at depth d emits paths of depth d+1, so it is only expanded while
// d < maxDepth. Each entity is expanded at most once per start entity, which
// keeps mutually invoking entities from looping. Equal-length alternatives are
// all kept.
func indirectPaths(g *graph.Graph, start *extract.Entity, maxDepth int) []CallPath {
	var out []CallPath
	visited := make(map[string]bool)
	queue := []frontier{{name: start.Name, chain: []string{start.Name}}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		current, ok := g.Frontend(item.name)
		if item.depth == 0 {
			current, ok = start, true
		}
		if !ok || visited[current.Name] {
			continue
		}
		visited[current.Name] = true
		if item.depth >= maxDepth {
			continue
		}

		for _, inv := range current.Invocations {
			collab, ok := g.Frontend(inv.Collaborator)
			if !ok {
				continue
			}
			hop := collab.Name + "." + inv.Method
			chain := append(append([]string(nil), item.chain...), hop)

			next := frontier{name: collab.Name, chain: chain, depth: item.depth + 1, firstHop: item.firstHop, firstLine: item.firstLine}
			if item.depth == 0 {
				next.firstHop, next.firstLine = hop, inv.Line
			}

			for _, call := range collab.NetworkCalls {
				for _, m := range g.MatchRoutes(call.Path) {
					full := append(append([]string(nil), chain...), call.Label(), m.Target())
					out = append(out, CallPath{
						Screen:        start.Name,
						ServiceMethod: next.firstHop,
						ClassName:     m.Entity.Name,
						MethodName:    m.Binding.Operation,
						PathType:      Indirect,
						Chain:         full,
						FilePath:      start.FilePath,
						Line:          next.firstLine,
						Depth:         next.depth,
						Confidence:    httplink.Score(call.Path, m.Binding.Template, call.Verb, m.Binding.Verb),
					})
				}
			}
			queue = append(queue, next)
		}
	}
	return out
}
