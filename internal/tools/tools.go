package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/store"
)

// Options configures a Server.
type Options struct {
	// Defaults seeds every analyze_call_paths run; tool arguments override it.
	Defaults pipeline.Options
	// Store, when set, records every run and backs list_runs.
	Store   *store.Store
	Version string
}

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	opts  Options
	store *store.Store

	// mu serializes analyses and guards last.
	mu   sync.Mutex
	last *pipeline.Result
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	srv := &Server{
		opts:  opts,
		store: opts.Store,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "callpath-mapper",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_call_paths",
		Description: "Scan UI (TypeScript/JavaScript) and backend (C#) source roots and resolve every call path from a UI entity to a backend controller operation. Direct paths are HTTP calls matched to route templates; indirect paths reach a backend operation through injected collaborators. The result is kept for match_route and list_entities.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"frontend": {
					"type": "array",
					"items": {"type": "string"},
					"description": "UI source roots (e.g. the Angular 'src' directory)"
				},
				"backend": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Backend source roots (e.g. the ASP.NET project directory)"
				},
				"roots": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Mixed roots; each file's layer is inferred from its extension"
				},
				"max_depth": {
					"type": "integer",
					"description": "Maximum collaborator hops for indirect paths (default 5, 0 disables them)"
				},
				"include_tests": {
					"type": "boolean",
					"description": "Scan spec/test files too (default: false)"
				},
				"screen": {
					"type": "string",
					"description": "Only return paths starting at this UI entity"
				},
				"limit": {
					"type": "integer",
					"description": "Max paths returned (default 200, max 1000); the summary always counts all paths"
				}
			}
		}`),
	}, s.handleAnalyze)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "match_route",
		Description: "Check a UI call path against backend route templates. With 'template' it compares the two directly; otherwise it matches against the routes of the last analysis and suggests near misses when nothing matches.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Call path as written in the UI code (e.g. '/api/orders/${id}')"
				},
				"template": {
					"type": "string",
					"description": "Route template to compare against (e.g. 'api/orders/{id}')"
				},
				"verb": {
					"type": "string",
					"description": "HTTP verb of the call, used only for the confidence score"
				},
				"route_verb": {
					"type": "string",
					"description": "HTTP verb of the template, used only for the confidence score"
				},
				"suggestions": {
					"type": "integer",
					"description": "Max near-miss templates when nothing matches (default 5)"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleMatchRoute)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_entities",
		Description: "List the entities extracted by the last analysis with their operations, outbound calls, route bindings and collaborator calls.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"layer": {
					"type": "string",
					"description": "Filter by layer",
					"enum": ["frontend", "backend"]
				},
				"kind": {
					"type": "string",
					"description": "Filter by kind",
					"enum": ["component", "service", "controller", "class"]
				},
				"name": {
					"type": "string",
					"description": "Case-insensitive substring of the entity name"
				}
			}
		}`),
	}, s.handleListEntities)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_runs",
		Description: "List recorded analysis runs with their summary and node/edge counts. Only available when the server was started with a database.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListRuns)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getStringsArg accepts either a list of strings or a single string.
func getStringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument, reporting whether it was present.
func getBoolArg(args map[string]any, key string) (value, ok bool) {
	value, ok = args[key].(bool)
	return value, ok
}

// lastResult returns the most recent analysis, or nil.
func (s *Server) lastResult() *pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
