package extract

import (
	"reflect"
	"testing"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

const orderScreenTS = `import { Component } from '@angular/core';
import { OrderService } from './order.service';

@Component({
  selector: 'app-order-screen',
  templateUrl: './order-screen.component.html'
})
export class OrderScreenComponent implements OnInit {
  constructor(private orderService: OrderService, private http: HttpClient) {}

  ngOnInit(): void {
    this.http.get<Order[]>('/api/orders').subscribe();
  }

  submit(order: Order): void {
    // this.legacy.submit(order);
    this.orderService.submit(order);
  }
}
`

const orderServiceTS = `@Injectable({ providedIn: 'root' })
export class OrderService {
  private readonly api = inject(ApiClient);

  constructor(private http: HttpClient) {}

  submit(order: Order): Observable<Order> {
    return this.http.post<Order>(` + "`/api/orders/${order.id}`" + `, order);
  }

  list() {
    return this.http.get("/api/orders");
  }
}
`

func TestFrontendComponent(t *testing.T) {
	e := Frontend("src/app/order-screen.component.ts", orderScreenTS)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "OrderScreenComponent" || e.Kind != KindComponent || e.Layer != lang.Frontend {
		t.Errorf("got name=%q kind=%q layer=%q", e.Name, e.Kind, e.Layer)
	}

	if got, want := e.OperationNames(), []string{"constructor", "ngOnInit", "submit"}; !reflect.DeepEqual(got, want) {
		t.Errorf("operations = %v, want %v", got, want)
	}

	wantDeps := []Dependency{
		{Name: "OrderService", Field: "orderService", Line: 9, Source: FromInjection},
		{Name: "HttpClient", Field: "http", Line: 9, Source: FromInjection},
	}
	if !reflect.DeepEqual(e.Dependencies, wantDeps) {
		t.Errorf("dependencies = %+v, want %+v", e.Dependencies, wantDeps)
	}

	wantCalls := []NetworkCall{{Verb: "GET", Path: "/api/orders", Line: 12, Operation: "ngOnInit"}}
	if !reflect.DeepEqual(e.NetworkCalls, wantCalls) {
		t.Errorf("network calls = %+v, want %+v", e.NetworkCalls, wantCalls)
	}

	// The HTTP call is not repeated as an invocation and the commented-out
	// call is ignored.
	wantEdges := []InvocationEdge{
		{Caller: "submit", Receiver: "orderService", Collaborator: "OrderService", Method: "submit", Line: 17},
	}
	if !reflect.DeepEqual(e.Invocations, wantEdges) {
		t.Errorf("invocations = %+v, want %+v", e.Invocations, wantEdges)
	}
}

func TestFrontendService(t *testing.T) {
	e := Frontend("src/app/order.service.ts", orderServiceTS)
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "OrderService" || e.Kind != KindService {
		t.Errorf("got name=%q kind=%q", e.Name, e.Kind)
	}

	if len(e.Dependencies) != 2 {
		t.Fatalf("dependencies = %+v", e.Dependencies)
	}
	if d := e.Dependencies[1]; d.Name != "ApiClient" || d.Field != "api" || d.Source != FromAcquisition || d.Line != 3 {
		t.Errorf("inject() dependency = %+v", d)
	}

	wantCalls := []NetworkCall{
		{Verb: "POST", Path: "/api/orders/${order.id}", Line: 8, Operation: "submit"},
		{Verb: "GET", Path: "/api/orders", Line: 12, Operation: "list"},
	}
	if !reflect.DeepEqual(e.NetworkCalls, wantCalls) {
		t.Errorf("network calls = %+v, want %+v", e.NetworkCalls, wantCalls)
	}

	for _, op := range e.Operations {
		if op.Name == "submit" && op.ReturnType != "Observable<Order>" {
			t.Errorf("submit return type = %q", op.ReturnType)
		}
	}
	if len(e.Invocations) != 0 {
		t.Errorf("expected no invocations, got %+v", e.Invocations)
	}
}

func TestFrontendNoDeclaration(t *testing.T) {
	tests := []struct {
		path    string
		content string
	}{
		{"src/environments/environment.ts", "export const environment = { production: false };\n"},
		{"src/main.ts", "// class Foo {}\nplatformBrowserDynamic().bootstrapModule(AppModule);\n"},
		{"src/empty.ts", ""},
	}
	for _, tt := range tests {
		if e := Frontend(tt.path, tt.content); e != nil {
			t.Errorf("Frontend(%q) = %+v, want nil", tt.path, e)
		}
	}
}

func TestFrontendNameFromFile(t *testing.T) {
	// A service-named file with no class still yields an entity.
	e := Frontend("src/app/legacy-orders.service.js", "angular.module('x').factory('legacy', fn);\n")
	if e == nil {
		t.Fatal("expected entity")
	}
	if e.Name != "LegacyOrdersService" {
		t.Errorf("name = %q", e.Name)
	}
}

func TestFrontendEntityScopeCalls(t *testing.T) {
	src := `export class Boot {
  private ready = this.config.load();
}
http.get('/api/health');
`
	e := Frontend("boot.ts", src)
	if e == nil {
		t.Fatal("expected entity")
	}
	if len(e.Invocations) != 1 || e.Invocations[0].Caller != "" || e.Invocations[0].Target() != "config.load" {
		t.Errorf("invocations = %+v", e.Invocations)
	}
	if len(e.NetworkCalls) != 1 || e.NetworkCalls[0].Operation != "" || e.NetworkCalls[0].Label() != "GET /api/health" {
		t.Errorf("network calls = %+v", e.NetworkCalls)
	}
}

func TestFrontendSkipsControlFlow(t *testing.T) {
	src := `export class Loop {
  run(items: Item[]) {
    for (const i of items) {
      if (i.ok) {
        this.sink.push(i);
      }
    }
  }
}
`
	e := Frontend("loop.ts", src)
	if got := e.OperationNames(); !reflect.DeepEqual(got, []string{"run"}) {
		t.Errorf("operations = %v", got)
	}
	if len(e.Invocations) != 1 || e.Invocations[0].Caller != "run" {
		t.Errorf("invocations = %+v", e.Invocations)
	}
}
