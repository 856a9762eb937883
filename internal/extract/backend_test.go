package extract

import (
	"reflect"
	"testing"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

const ordersControllerCS = `using Microsoft.AspNetCore.Mvc;

namespace Shop.Api.Controllers
{
    [ApiController]
    [Route("api/[controller]")]
    public class OrdersController : ControllerBase
    {
        private readonly IOrderService _orders;

        public OrdersController(IOrderService orders)
        {
            _orders = orders;
        }

        [HttpGet("api/orders")]
        public async Task<IActionResult> GetAll()
        {
            var items = await _orders.ListAsync();
            return Ok(items);
        }

        [HttpPost]
        [Route("api/orders/{id}")]
        public IActionResult Submit(int id, [FromBody] OrderDto dto)
        {
            _orders.Submit(id, dto);
            return Ok();
        }
    }
}
`

func TestBackendController(t *testing.T) {
	e := Backend("Api/Controllers/OrdersController.cs", ordersControllerCS)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "OrdersController" || e.Kind != KindController || e.Layer != lang.Backend {
		t.Errorf("got name=%q kind=%q layer=%q", e.Name, e.Kind, e.Layer)
	}
	if e.RoutePrefix != "api/[controller]" {
		t.Errorf("route prefix = %q", e.RoutePrefix)
	}

	// The constructor is not an operation.
	if got, want := e.OperationNames(), []string{"GetAll", "Submit"}; !reflect.DeepEqual(got, want) {
		t.Errorf("operations = %v, want %v", got, want)
	}
	if op := e.Operations[1]; op.Line != 25 || op.ReturnType != "IActionResult" ||
		!reflect.DeepEqual(op.Params, []string{"int id", "[FromBody] OrderDto dto"}) {
		t.Errorf("Submit operation = %+v", op)
	}

	wantRoutes := []RouteBinding{
		{Template: "api/orders", Verb: "GET", Operation: "GetAll", Line: 16},
		{Template: "api/orders/{id}", Verb: "POST", Operation: "Submit", Line: 24},
	}
	if !reflect.DeepEqual(e.Routes, wantRoutes) {
		t.Errorf("routes = %+v, want %+v", e.Routes, wantRoutes)
	}

	wantDeps := []Dependency{{Name: "IOrderService", Field: "orders", Line: 11, Source: FromInjection}}
	if !reflect.DeepEqual(e.Dependencies, wantDeps) {
		t.Errorf("dependencies = %+v, want %+v", e.Dependencies, wantDeps)
	}

	wantEdges := []InvocationEdge{
		{Caller: "GetAll", Receiver: "_orders", Collaborator: "IOrderService", Method: "ListAsync", Line: 19},
		{Caller: "Submit", Receiver: "_orders", Collaborator: "IOrderService", Method: "Submit", Line: 27},
	}
	if !reflect.DeepEqual(e.Invocations, wantEdges) {
		t.Errorf("invocations = %+v, want %+v", e.Invocations, wantEdges)
	}
}

func TestBackendRouteAttributes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []RouteBinding
	}{
		{
			name: "two templates on one operation",
			src: `public class A {
    [HttpGet("a/list")]
    [HttpGet("a/all")]
    public IActionResult List() { return Ok(); }
}`,
			want: []RouteBinding{
				{Template: "a/list", Verb: "GET", Operation: "List", Line: 2},
				{Template: "a/all", Verb: "GET", Operation: "List", Line: 3},
			},
		},
		{
			name: "later binding of same template replaces earlier",
			src: `public class A {
    [HttpGet("a/x")]
    public IActionResult First() { return Ok(); }

    [HttpPut("a/x")]
    public IActionResult Second() { return Ok(); }
}`,
			want: []RouteBinding{
				{Template: "a/x", Verb: "PUT", Operation: "Second", Line: 5},
			},
		},
		{
			name: "verb-only attribute binds nothing",
			src: `public class A {
    [HttpDelete]
    public IActionResult Remove() { return Ok(); }
}`,
			want: nil,
		},
		{
			name: "combined attribute list and named template",
			src: `public class A {
    [HttpPatch, Route(template: "a/{id}/status")]
    public IActionResult Patch(int id) { return Ok(); }
}`,
			want: []RouteBinding{
				{Template: "a/{id}/status", Verb: "PATCH", Operation: "Patch", Line: 2},
			},
		},
		{
			name: "attribute separated from operation by a statement is dropped",
			src: `public class A {
    private int _n = 0; [HttpGet("stray")] ;
    public IActionResult Get() { return Ok(); }
}`,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Backend("A.cs", tt.src)
			if e == nil {
				t.Fatal("expected entity")
			}
			if !reflect.DeepEqual(e.Routes, tt.want) {
				t.Errorf("routes = %+v, want %+v", e.Routes, tt.want)
			}
		})
	}
}

func TestBackendAcquisitions(t *testing.T) {
	src := `public class Startup
{
    public void ConfigureServices(IServiceCollection services)
    {
        services.AddScoped<IOrderService, OrderService>();
        services.AddSingleton<Clock>();
    }

    public void Run(IServiceProvider provider)
    {
        var repo = provider.GetRequiredService<IOrderRepository>();
        _audit = new AuditLog(repo);
        repo.Save();
        _audit.Write("started");
        throw new InvalidOperationException("x");
    }
}
`
	e := Backend("Startup.cs", src)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Kind != KindClass {
		t.Errorf("kind = %q", e.Kind)
	}

	var names []string
	for _, d := range e.Dependencies {
		if d.Source != FromAcquisition {
			t.Errorf("unexpected source for %+v", d)
		}
		names = append(names, d.Name)
	}
	if want := []string{"IOrderService", "OrderService", "Clock", "IOrderRepository", "AuditLog"}; !reflect.DeepEqual(names, want) {
		t.Errorf("dependency names = %v, want %v", names, want)
	}

	var targets []string
	for _, inv := range e.Invocations {
		if inv.Caller == "Run" {
			targets = append(targets, inv.Target())
		}
	}
	if want := []string{"provider.GetRequiredService", "IOrderRepository.Save", "AuditLog.Write"}; !reflect.DeepEqual(targets, want) {
		t.Errorf("Run invocations = %v, want %v", targets, want)
	}
}

func TestBackendExpressionBodiedAndRecord(t *testing.T) {
	src := `public record OrderSummary(int Count);

public sealed class Counter
{
    private readonly IRepo _repo;
    public int Count() => _repo.Count();
}
`
	e := Backend("Counter.cs", src)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "Counter" {
		t.Errorf("name = %q, want the first class declaration", e.Name)
	}
	if len(e.Invocations) != 1 || e.Invocations[0].Caller != "Count" || e.Invocations[0].Target() != "IRepo.Count" {
		t.Errorf("invocations = %+v", e.Invocations)
	}
}

func TestBackendNoDeclaration(t *testing.T) {
	tests := []string{
		"",
		"// public class Hidden {}\nvar x = 1;\n",
		"global using System;\n",
	}
	for _, src := range tests {
		if e := Backend("X.cs", src); e != nil {
			t.Errorf("Backend(%q) = %+v, want nil", src, e)
		}
	}
}

func TestBackendRoutesWithoutClass(t *testing.T) {
	// Minimal top-level handlers still yield an entity named after the file.
	src := `[HttpGet("health")]
static string Health() { return "ok"; }
`
	e := Backend("Endpoints/health-check.cs", src)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "HealthCheck" || e.Kind != KindController {
		t.Errorf("got name=%q kind=%q", e.Name, e.Kind)
	}
	if len(e.Routes) != 1 || e.Routes[0].Operation != "Health" {
		t.Errorf("routes = %+v", e.Routes)
	}
}
