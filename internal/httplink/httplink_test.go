package httplink

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/api/orders/", "api/orders"},
		{"api/orders", "api/orders"},
		{"/api/orders/:id", "api/orders/*"},
		{"/api/orders/{order_id}", "api/orders/*"},
		{"/API/Orders", "api/orders"},
		{"/api/:version/items/:id", "api/*/items/*"},
		{"api/[controller]/{id:int}", "api/*/*"},
		{"/orders/${order.id}/confirm", "orders/*/confirm"},
		{"/users/42", "users/*"},
		{"/v2/items", "v2/items"},
		{"/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizePath(tt.input)
		if got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		callPath  string
		routePath string
		want      bool
	}{
		// Exact after normalization
		{"/orders/{id}/confirm", "orders/{id}/confirm", true},
		{"/API/Orders/", "api/orders", true},

		// Placeholders from either layer against a numeric literal
		{"/users/{id}", "/users/42", true},
		{"/users/${user.id}", "users/{id}", true},
		{"/users/:id", "users/[id]", true},
		{"/users/7", "users/{userId:int}", true},

		// Containment fallback, both directions
		{"https://host/api/orders", "/api/orders", true},
		{"orders", "orders/archive", true},
		{"/api", "/api/orders", true},

		// Empty normalizes to "" which every path contains
		{"/", "/api/orders", true},

		// No match
		{"/api/users", "/api/orders", false},
		{"/users/{id}", "/users/abc", false},
	}
	for _, tt := range tests {
		if got := Matches(tt.callPath, tt.routePath); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.callPath, tt.routePath, got, tt.want)
		}
	}
}

func TestMatchesSymmetric(t *testing.T) {
	paths := []string{
		"", "/", "/orders", "orders/{id}", "/orders/42/confirm", "api/[controller]",
		"/api/orders", "https://host/api/orders", "/users/:id", "customers",
	}
	for _, a := range paths {
		for _, b := range paths {
			if Matches(a, b) != Matches(b, a) {
				t.Errorf("Matches(%q, %q) != Matches(%q, %q)", a, b, b, a)
			}
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		call, route      string
		callVerb, rtVerb string
		min, max         float64
	}{
		// equal: 0.95 × (0.5×1 + 0.5×2/3) ≈ 0.79
		{"/api/orders", "/api/orders", "", "", 0.78, 0.80},
		{"/api/orders", "/api/orders", "GET", "get", 0.88, 0.90},
		{"/api/orders", "/api/orders", "GET", "POST", 0.63, 0.65},
		// placeholders collapse to the same form: 0.95 × (0.5×1 + 0.5×1)
		{"/api/orders/123", "/api/orders/:id", "", "", 0.94, 0.96},
		// suffix: 0.75 × (0.5×1 + 0.5×2/3) ≈ 0.625
		{"https://host/api/orders", "/api/orders", "", "", 0.62, 0.63},
		// prefix: 0.55 × (0.5×0.5 + 0.5×1/3) ≈ 0.229
		{"orders", "orders/archive", "", "", 0.22, 0.24},
		// no match
		{"/api/users", "/api/orders", "GET", "GET", 0, 0},
	}
	for _, tt := range tests {
		got := Score(tt.call, tt.route, tt.callVerb, tt.rtVerb)
		if got < tt.min || got > tt.max {
			t.Errorf("Score(%q, %q, %q, %q) = %.3f, want [%.2f, %.2f]",
				tt.call, tt.route, tt.callVerb, tt.rtVerb, got, tt.min, tt.max)
		}
	}
}

func TestScoreNeverChangesMatch(t *testing.T) {
	pairs := [][2]string{
		{"/", "/api"}, {"orders", "orders/archive"}, {"/x", "/y"}, {"", ""},
	}
	for _, p := range pairs {
		s := Score(p[0], p[1], "GET", "POST")
		if s < 0 || s > 1 {
			t.Errorf("Score(%q, %q) = %f out of range", p[0], p[1], s)
		}
		if !Matches(p[0], p[1]) && s != 0 {
			t.Errorf("Score(%q, %q) = %f for non-matching pair", p[0], p[1], s)
		}
	}
}
