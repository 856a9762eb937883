package graph

import (
	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/lang"
)

// EdgeType labels a relation in the call graph.
type EdgeType string

const (
	// INVOKES: entity (or one of its operations) calls Collaborator.Method.
	EdgeInvokes EdgeType = "INVOKES"
	// HTTP_CALLS: UI entity issues "VERB path".
	EdgeHTTPCalls EdgeType = "HTTP_CALLS"
	// HANDLES: backend route template is bound to Entity.Operation.
	EdgeHandles EdgeType = "HANDLES"
)

// Edge is one labeled relation. Targets are names, never pointers; Resolved
// reports whether an INVOKES target names a registered entity.
type Edge struct {
	Type      EdgeType
	Layer     lang.Layer
	From      string // entity name
	Operation string // originating operation, empty at entity scope
	To        string
	Line      int
	Resolved  bool
}

// Edges lists every relation of the graph: frontend entities first, then
// backend entities, each in registration order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, e := range g.frontend.list() {
		out = append(out, g.entityEdges(e)...)
	}
	for _, e := range g.backend.list() {
		out = append(out, g.entityEdges(e)...)
	}
	return out
}

func (g *Graph) entityEdges(e *extract.Entity) []Edge {
	var out []Edge
	for _, inv := range e.Invocations {
		_, resolved := g.frontend.get(inv.Collaborator)
		if e.Layer == lang.Backend {
			_, resolved = g.backend.get(inv.Collaborator)
		}
		out = append(out, Edge{
			Type:      EdgeInvokes,
			Layer:     e.Layer,
			From:      e.Name,
			Operation: inv.Caller,
			To:        inv.Target(),
			Line:      inv.Line,
			Resolved:  resolved,
		})
	}
	for _, c := range e.NetworkCalls {
		out = append(out, Edge{
			Type:      EdgeHTTPCalls,
			Layer:     e.Layer,
			From:      e.Name,
			Operation: c.Operation,
			To:        c.Label(),
			Line:      c.Line,
			Resolved:  len(g.MatchRoutes(c.Path)) > 0,
		})
	}
	for _, rb := range e.Routes {
		out = append(out, Edge{
			Type:      EdgeHandles,
			Layer:     e.Layer,
			From:      rb.Template,
			Operation: rb.Operation,
			To:        e.Name + "." + rb.Operation,
			Line:      rb.Line,
			Resolved:  true,
		})
	}
	return out
}
