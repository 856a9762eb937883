package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/callpath-mapper/internal/httplink"
)

// minSuggestionSimilarity drops near misses that share almost nothing.
const minSuggestionSimilarity = 0.3

type routeMatch struct {
	Entity     string  `json:"entity"`
	Operation  string  `json:"operation"`
	Template   string  `json:"template"`
	Verb       string  `json:"verb,omitempty"`
	Confidence float64 `json:"confidence"`
	Band       string  `json:"band"`
}

func (s *Server) handleMatchRoute(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	verb := getStringArg(args, "verb")

	if template, ok := args["template"].(string); ok {
		matched := httplink.Matches(path, template)
		score := 0.0
		if matched {
			score = httplink.Score(path, template, verb, getStringArg(args, "route_verb"))
		}
		return jsonResult(map[string]any{
			"path":                path,
			"template":            template,
			"normalized_path":     httplink.NormalizePath(path),
			"normalized_template": httplink.NormalizePath(template),
			"matches":             matched,
			"confidence":          score,
			"band":                httplink.ConfidenceBand(score),
		}), nil
	}

	res := s.lastResult()
	if res == nil {
		return errResult("no analysis yet: pass 'template' or call analyze_call_paths first"), nil
	}

	matches := make([]routeMatch, 0)
	for _, m := range res.Graph.MatchRoutes(path) {
		score := httplink.Score(path, m.Binding.Template, verb, m.Binding.Verb)
		matches = append(matches, routeMatch{
			Entity:     m.Entity.Name,
			Operation:  m.Binding.Operation,
			Template:   m.Binding.Template,
			Verb:       m.Binding.Verb,
			Confidence: score,
			Band:       httplink.ConfidenceBand(score),
		})
	}

	out := map[string]any{
		"path":            path,
		"normalized_path": httplink.NormalizePath(path),
		"matches":         matches,
	}
	if len(matches) == 0 {
		n := getIntArg(args, "suggestions", 5)
		suggestions := httplink.Nearest(path, res.Graph.RouteTemplates(), n, minSuggestionSimilarity)
		if suggestions == nil {
			suggestions = []httplink.Suggestion{}
		}
		out["suggestions"] = suggestions
	}
	return jsonResult(out), nil
}
