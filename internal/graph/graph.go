// Package graph assembles extracted entities into per-layer name registries
// and answers the queries path resolution needs.
//
// Collaborators are linked by name, never by pointer, so an invocation naming
// an entity that was never extracted is an ordinary lookup miss. Route
// bindings are stored as written and only matched against call paths at query
// time, so discovery order never affects which routes exist.
package graph

import (
	"log/slog"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/httplink"
	"github.com/DeusData/callpath-mapper/internal/lang"
)

// registry maps entity names to entities for one layer. A later entity with
// an existing name replaces the earlier one but keeps its position in order.
type registry struct {
	byName map[string]*extract.Entity
	byFold map[string]string // lower-cased name -> registered name, last write wins
	order  []string
}

func newRegistry() *registry {
	return &registry{
		byName: make(map[string]*extract.Entity),
		byFold: make(map[string]string),
	}
}

func (r *registry) put(e *extract.Entity) *extract.Entity {
	prev, exists := r.byName[e.Name]
	if !exists {
		r.order = append(r.order, e.Name)
	}
	r.byName[e.Name] = e
	r.byFold[strings.ToLower(e.Name)] = e.Name
	return prev
}

// get looks up by exact name first, then case-insensitively.
func (r *registry) get(name string) (*extract.Entity, bool) {
	if e, ok := r.byName[name]; ok {
		return e, true
	}
	if canon, ok := r.byFold[strings.ToLower(name)]; ok {
		return r.byName[canon], true
	}
	return nil, false
}

func (r *registry) list() []*extract.Entity {
	out := make([]*extract.Entity, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// Graph holds the frontend and backend entity tables of one run.
type Graph struct {
	frontend *registry
	backend  *registry
	replaced int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{frontend: newRegistry(), backend: newRegistry()}
}

// Build adds entities in the given order. Callers pass them sorted by file
// path so last-write-wins replacement is reproducible.
func Build(entities []*extract.Entity) *Graph {
	g := New()
	for _, e := range entities {
		g.Add(e)
	}
	return g
}

// Add registers e in the table of its layer and returns the entity it
// replaced, if any. Entities with an unknown layer are ignored.
func (g *Graph) Add(e *extract.Entity) *extract.Entity {
	if e == nil {
		return nil
	}
	var r *registry
	switch e.Layer {
	case lang.Frontend:
		r = g.frontend
	case lang.Backend:
		r = g.backend
	default:
		return nil
	}
	prev := r.put(e)
	if prev != nil {
		g.replaced++
		slog.Warn("graph.replace", "layer", e.Layer, "name", e.Name, "prev", prev.FilePath, "file", e.FilePath)
	}
	return prev
}

// Frontend looks up a UI entity by name.
func (g *Graph) Frontend(name string) (*extract.Entity, bool) { return g.frontend.get(name) }

// Backend looks up a backend entity by name.
func (g *Graph) Backend(name string) (*extract.Entity, bool) { return g.backend.get(name) }

// FrontendEntities returns the UI entities in first-registration order.
func (g *Graph) FrontendEntities() []*extract.Entity { return g.frontend.list() }

// BackendEntities returns the backend entities in first-registration order.
func (g *Graph) BackendEntities() []*extract.Entity { return g.backend.list() }

// Replaced counts entities that were overwritten by a later same-named entity.
func (g *Graph) Replaced() int { return g.replaced }

// RouteMatch is a backend binding whose template matched a call path.
type RouteMatch struct {
	Entity  *extract.Entity
	Binding extract.RouteBinding
}

// Target renders the match as "Entity.Operation".
func (m RouteMatch) Target() string {
	return m.Entity.Name + "." + m.Binding.Operation
}

// MatchRoutes returns every backend binding whose template matches path,
// in backend registration order then binding order.
func (g *Graph) MatchRoutes(path string) []RouteMatch {
	var out []RouteMatch
	for _, e := range g.backend.list() {
		for _, rb := range e.Routes {
			if httplink.Matches(path, rb.Template) {
				out = append(out, RouteMatch{Entity: e, Binding: rb})
			}
		}
	}
	return out
}

// RouteTemplates returns every backend route template in registration order.
func (g *Graph) RouteTemplates() []string {
	var out []string
	for _, e := range g.backend.list() {
		for _, rb := range e.Routes {
			out = append(out, rb.Template)
		}
	}
	return out
}
