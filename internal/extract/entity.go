// Package extract turns raw source text into symbolic entities using lexical
// pattern recognition only. Nothing here parses a syntax tree or resolves types.
package extract

import "github.com/DeusData/callpath-mapper/internal/lang"

// Kind labels what sort of entity a file declared.
type Kind string

const (
	KindComponent  Kind = "component"
	KindService    Kind = "service"
	KindController Kind = "controller"
	KindClass      Kind = "class"
)

// DependencySource records which lexical shape produced a dependency.
type DependencySource string

const (
	FromInjection   DependencySource = "injection"
	FromAcquisition DependencySource = "acquisition"
)

// Entity is a UI component/service or a backend class extracted from one file.
// It is not modified after extraction.
type Entity struct {
	Name     string
	Kind     Kind
	Layer    lang.Layer
	FilePath string

	// ContentHash is the xxh3 digest of the file content, filled by the caller
	// that read the file.
	ContentHash string

	// RoutePrefix is the class-level route template of a backend controller.
	// Informational only: bindings are matched without it.
	RoutePrefix string

	Dependencies []Dependency
	Operations   []Operation
	NetworkCalls []NetworkCall // frontend only
	Routes       []RouteBinding
	Invocations  []InvocationEdge
}

// Dependency is a named reference to a collaborator type, resolved lazily by name.
type Dependency struct {
	Name   string // collaborator type name
	Field  string // local field/parameter name, empty when the shape carries none
	Line   int
	Source DependencySource
}

// Operation is a callable declared on an entity. Names are not unique.
type Operation struct {
	Name       string
	ReturnType string
	Params     []string
	Line       int
}

// NetworkCall is an outbound HTTP-style call made by a UI entity.
type NetworkCall struct {
	Verb      string // upper-case HTTP verb
	Path      string // path template as written
	Line      int
	Operation string // enclosing operation, empty at entity scope
}

// Label renders the call as "VERB path".
func (c NetworkCall) Label() string {
	return c.Verb + " " + c.Path
}

// RouteBinding pairs a backend path template with one operation.
type RouteBinding struct {
	Template  string
	Verb      string // empty when only a Route attribute was present
	Operation string
	Line      int
}

// InvocationEdge is a lexically detected call "Collaborator.Method(" made
// from Caller. The collaborator is not verified to exist.
type InvocationEdge struct {
	Caller       string // enclosing operation, empty at entity scope
	Receiver     string // receiver identifier as written
	Collaborator string // receiver resolved through declared fields when possible
	Method       string
	Line         int
}

// Target renders the edge as "Collaborator.Method".
func (e InvocationEdge) Target() string {
	return e.Collaborator + "." + e.Method
}

// setRoute records a binding, replacing an earlier binding of the same
// template in place.
func (e *Entity) setRoute(rb RouteBinding) {
	for i := range e.Routes {
		if e.Routes[i].Template == rb.Template {
			e.Routes[i] = rb
			return
		}
	}
	e.Routes = append(e.Routes, rb)
}

// OperationNames returns the operation names in declaration order.
func (e *Entity) OperationNames() []string {
	names := make([]string, len(e.Operations))
	for i, op := range e.Operations {
		names[i] = op.Name
	}
	return names
}

// Extract dispatches to the extractor for the given layer. A nil result means
// the text has no recognizable declaration shape.
func Extract(path string, layer lang.Layer, content string) *Entity {
	switch layer {
	case lang.Frontend:
		return Frontend(path, content)
	case lang.Backend:
		return Backend(path, content)
	}
	return nil
}
