package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/callpath-mapper/internal/store"
)

const screenTS = `@Component({ selector: 'app-orders' })
export class OrdersScreen {
  constructor(private http: HttpClient) {}

  save(order: Order) {
    return this.http.post('/orders', order);
  }
}
`

const controllerCS = `[ApiController]
public class OrdersController : ControllerBase
{
    [HttpPost("orders")]
    public IActionResult Create(OrderDto dto)
    {
        return Ok();
    }

    [HttpPost("orders/{id}/confirm")]
    public IActionResult Confirm(int id)
    {
        return Ok();
    }
}
`

func fixture(t *testing.T) (web, api string) {
	t.Helper()
	web, api = t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(web, "orders.component.ts"), []byte(screenTS), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(api, "OrdersController.cs"), []byte(controllerCS), 0o600); err != nil {
		t.Fatal(err)
	}
	return web, api
}

func call(t *testing.T, h func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) (map[string]any, bool) {
	t.Helper()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if res.IsError {
		return map[string]any{"error": text}, true
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return out, false
}

func analyzeArgs(t *testing.T, web, api string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"frontend": []string{web}, "backend": api})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestAnalyzeRequiresRoots(t *testing.T) {
	srv := NewServer(Options{})
	if _, isErr := call(t, srv.handleAnalyze, `{}`); !isErr {
		t.Error("expected error without roots")
	}
}

func TestAnalyzeInaccessibleRoot(t *testing.T) {
	srv := NewServer(Options{})
	args := `{"backend": ["` + filepath.ToSlash(filepath.Join(t.TempDir(), "missing")) + `"]}`
	if out, isErr := call(t, srv.handleAnalyze, args); !isErr {
		t.Errorf("expected error, got %v", out)
	}
}

func TestAnalyzeThenQuery(t *testing.T) {
	web, api := fixture(t)
	srv := NewServer(Options{})

	out, isErr := call(t, srv.handleAnalyze, analyzeArgs(t, web, api))
	if isErr {
		t.Fatalf("analyze: %v", out)
	}
	summary := out["summary"].(map[string]any)
	if summary["total_paths"] != float64(2) || summary["direct_paths_count"] != float64(2) {
		t.Errorf("summary = %v", summary)
	}
	if paths := out["paths"].([]any); len(paths) != 2 || out["truncated"] != false {
		t.Errorf("paths = %v truncated = %v", paths, out["truncated"])
	}

	limited, _ := call(t, srv.handleAnalyze, `{"frontend": ["`+filepath.ToSlash(web)+`"], "backend": ["`+filepath.ToSlash(api)+`"], "limit": 1}`)
	if paths := limited["paths"].([]any); len(paths) != 1 || limited["truncated"] != true {
		t.Errorf("limit: paths = %v truncated = %v", paths, limited["truncated"])
	}

	ents, isErr := call(t, srv.handleListEntities, `{"layer": "backend"}`)
	if isErr || ents["count"] != float64(1) {
		t.Fatalf("list_entities = %v", ents)
	}
	ctrl := ents["entities"].([]any)[0].(map[string]any)
	if ctrl["name"] != "OrdersController" || ctrl["kind"] != "controller" || len(ctrl["routes"].([]any)) != 2 {
		t.Errorf("controller = %v", ctrl)
	}

	match, _ := call(t, srv.handleMatchRoute, `{"path": "/orders/42/confirm", "verb": "POST"}`)
	matches := match["matches"].([]any)
	if len(matches) != 2 {
		t.Fatalf("matches = %v", matches)
	}
	if _, ok := match["suggestions"]; ok {
		t.Error("suggestions offered despite matches")
	}

	miss, _ := call(t, srv.handleMatchRoute, `{"path": "/invoices"}`)
	if len(miss["matches"].([]any)) != 0 {
		t.Errorf("unexpected matches: %v", miss)
	}
	if _, ok := miss["suggestions"].([]any); !ok {
		t.Errorf("suggestions missing: %v", miss)
	}
}

func TestMatchRouteTemplate(t *testing.T) {
	srv := NewServer(Options{})
	out, isErr := call(t, srv.handleMatchRoute, `{"path": "/api/orders/${id}", "template": "api/orders/{id}", "verb": "GET", "route_verb": "GET"}`)
	if isErr {
		t.Fatal(out)
	}
	if out["matches"] != true || out["band"] != "high" || out["normalized_path"] != "api/orders/*" {
		t.Errorf("out = %v", out)
	}

	out, _ = call(t, srv.handleMatchRoute, `{"path": "/api/users", "template": "api/orders"}`)
	if out["matches"] != false || out["confidence"] != float64(0) {
		t.Errorf("non-match = %v", out)
	}
}

func TestQueriesNeedAnalysis(t *testing.T) {
	srv := NewServer(Options{})
	if _, isErr := call(t, srv.handleMatchRoute, `{"path": "/orders"}`); !isErr {
		t.Error("match_route without analysis or template should fail")
	}
	if _, isErr := call(t, srv.handleListEntities, `{}`); !isErr {
		t.Error("list_entities without analysis should fail")
	}
	if _, isErr := call(t, srv.handleMatchRoute, `{}`); !isErr {
		t.Error("match_route without path should fail")
	}
}

func TestListRuns(t *testing.T) {
	if _, isErr := call(t, NewServer(Options{}).handleListRuns, `{}`); !isErr {
		t.Error("list_runs without a database should fail")
	}

	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	web, api := fixture(t)
	srv := NewServer(Options{Store: s})
	if out, isErr := call(t, srv.handleAnalyze, analyzeArgs(t, web, api)); isErr {
		t.Fatalf("analyze: %v", out)
	}

	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}}
	res, err := srv.handleListRuns(context.Background(), req)
	if err != nil || res.IsError {
		t.Fatalf("list_runs: %v %v", res, err)
	}
	var runs []map[string]any
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0]["nodes"].(float64) == 0 || runs[0]["edges"].(float64) == 0 {
		t.Errorf("runs = %v", runs)
	}
}
