package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeusData/callpath-mapper/internal/config"
	"github.com/DeusData/callpath-mapper/internal/report"
)

const screenTS = `@Component({ selector: 'app-order-screen' })
export class OrderScreen {
  constructor(private orders: OrderService) {}

  confirm(id: number): void {
    this.orders.submit({ id });
    this.http.post(` + "`/orders/${id}/confirm`" + `, {});
  }
}
`

const serviceTS = `@Injectable({ providedIn: 'root' })
export class OrderService {
  constructor(private http: HttpClient) {}

  submit(order: Order) {
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

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) (web, api string) {
	t.Helper()
	web = t.TempDir()
	api = t.TempDir()
	writeFile(t, filepath.Join(web, "app", "order-screen.component.ts"), screenTS)
	writeFile(t, filepath.Join(web, "app", "order.service.ts"), serviceTS)
	writeFile(t, filepath.Join(api, "Controllers", "OrdersController.cs"), controllerCS)
	return web, api
}

// execute runs the root command in-process and returns stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func readSummary(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return doc.Summary
}

func TestAnalyzeWritesOutputs(t *testing.T) {
	web, api := fixture(t)
	outDir := filepath.Join(t.TempDir(), "out")

	stdout, stderr, err := execute(t, "analyze",
		"--frontend", web, "--backend", api,
		"-o", outDir, "--format", "json,csv")
	if err != nil {
		t.Fatalf("analyze: %v\nstderr: %s", err, stderr)
	}

	for _, want := range []string{
		"Analysis complete!",
		"Found 6 call paths:",
		"  - 4 direct paths",
		"  - 2 indirect paths",
		"Results saved to: " + outDir,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}

	for _, name := range []string{report.JSON.FileName(), report.CSV.FileName()} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, report.HTML.FileName())); err == nil {
		t.Error("html written without being requested")
	}

	s := readSummary(t, filepath.Join(outDir, report.JSON.FileName()))
	if s["total_paths"] != float64(6) || s["total_screens"] != float64(1) {
		t.Errorf("summary = %v", s)
	}
}

func TestAnalyzePositionalRoot(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "web", "order.service.ts"), serviceTS)
	writeFile(t, filepath.Join(repo, "api", "OrdersController.cs"), controllerCS)
	outDir := filepath.Join(t.TempDir(), "out")

	stdout, _, err := execute(t, "analyze", repo, "-o", outDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "Found 2 call paths:") {
		t.Errorf("stdout:\n%s", stdout)
	}
}

func TestAnalyzeConfigFile(t *testing.T) {
	web, api := fixture(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "from-config")
	cfgPath := filepath.Join(dir, "callpath.yaml")
	writeFile(t, cfgPath, "analysis:\n  max_depth: 0\noutput:\n  dir: "+outDir+"\n  formats: [json]\n")

	stdout, _, err := execute(t, "--config", cfgPath, "analyze", "--frontend", web, "--backend", api)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "  - 0 indirect paths") {
		t.Errorf("max_depth from config ignored:\n%s", stdout)
	}
	s := readSummary(t, filepath.Join(outDir, report.JSON.FileName()))
	if s["max_depth"] != float64(0) {
		t.Errorf("max_depth = %v", s["max_depth"])
	}

	// flags win over the file
	stdout, _, err = execute(t, "--config", cfgPath, "analyze", "--frontend", web, "--backend", api, "--max-depth", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "  - 2 indirect paths") {
		t.Errorf("--max-depth did not override config:\n%s", stdout)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	web, api := fixture(t)
	out := t.TempDir()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no roots", []string{"analyze", "-o", out}, errNoRoots},
		{"negative depth", []string{"analyze", web, "--max-depth", "-1", "-o", out}, config.ErrInvalidDepth},
		{"unknown format", []string{"analyze", "--frontend", web, "--backend", api, "--format", "xml", "-o", out}, report.ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !strings.Contains(stderr, "Error:") {
				t.Errorf("error not reported on stderr: %q", stderr)
			}
		})
	}
}

func TestAnalyzeMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, _, err := execute(t, "analyze", "--frontend", missing, "-o", t.TempDir()); err == nil {
		t.Fatal("expected an error for an inaccessible root")
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "callpath-mapper "+version+"\n" {
		t.Errorf("version output = %q", stdout)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{
			[]string{"match", "/api/orders/${id}", "api/orders/{id:int}", "--verb", "GET", "--route-verb", "GET"},
			[]string{"call path:  api/orders/*", "template:   api/orders/*", "matches:    true", "(high)"},
		},
		{
			[]string{"match", "/api/users", "api/orders"},
			[]string{"matches:    false", "confidence: 0.00"},
		},
	}
	for _, tt := range tests {
		stdout, _, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		for _, w := range tt.want {
			if !strings.Contains(stdout, w) {
				t.Errorf("%v: output missing %q:\n%s", tt.args, w, stdout)
			}
		}
	}
}

func TestMatchArgs(t *testing.T) {
	if _, _, err := execute(t, "match", "/only-one"); err == nil {
		t.Error("expected an argument count error")
	}
}
