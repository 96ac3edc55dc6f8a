package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFirstMatchWins(t *testing.T) {
	reg := New(
		Route{Name: "capabilities", Prefixes: []string{"/api/v1/capabilities"}, Target: Local(5005)},
		Route{Name: "web", Prefixes: []string{"/api/v1"}, Target: Local(5000)},
	)

	route, ok := reg.Resolve("/api/v1/capabilities/x")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Name != "capabilities" {
		t.Fatalf("expected capabilities route, got %q", route.Name)
	}

	route, ok = reg.Resolve("/api/v1/budget/summary")
	if !ok || route.Name != "web" {
		t.Fatalf("expected generic web route, got %q (ok=%v)", route.Name, ok)
	}
}

func TestResolveRegistrationOrderBeatsSpecificity(t *testing.T) {
	// Precedence is registration order, not prefix length.
	reg := New(
		Route{Name: "web", Prefixes: []string{"/api/v1"}, Target: Local(5000)},
		Route{Name: "capabilities", Prefixes: []string{"/api/v1/capabilities"}, Target: Local(5005)},
	)
	route, ok := reg.Resolve("/api/v1/capabilities/x")
	if !ok || route.Name != "web" {
		t.Fatalf("expected web to win by registration order, got %q", route.Name)
	}
}

func TestResolveNoMatch(t *testing.T) {
	reg := New(Route{Name: "web", Prefixes: []string{"/api/v1"}, Target: Local(5000)})
	if _, ok := reg.Resolve("/static/logo.png"); ok {
		t.Fatal("expected no match for unrelated path")
	}
}

func TestLookupByName(t *testing.T) {
	reg := New(Route{Name: "chat", Prefixes: []string{"/api/v1/chat"}, Target: Local(5001)})
	route, ok := reg.Lookup("chat")
	if !ok || route.Target.Port != 5001 {
		t.Fatalf("unexpected lookup result: %+v ok=%v", route, ok)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestTargetURL(t *testing.T) {
	if got := Local(5001).URL(); got != "http://127.0.0.1:5001" {
		t.Fatalf("unexpected local url: %s", got)
	}
	if got := Remote("http://chat.internal:8080/").URL(); got != "http://chat.internal:8080" {
		t.Fatalf("unexpected remote url: %s", got)
	}
}

func TestDefaultRoutesPrecedence(t *testing.T) {
	reg := New(DefaultRoutes()...)
	route, ok := reg.Resolve("/api/v1/capabilities/list")
	if !ok || route.Name != "capabilities" {
		t.Fatalf("expected capabilities before catch-all, got %q", route.Name)
	}
	route, ok = reg.Resolve("/api/v1/anything")
	if !ok || route.Name != "web" {
		t.Fatalf("expected web catch-all, got %q", route.Name)
	}
}

func TestLoadFile(t *testing.T) {
	data := `
- name: chat
  prefixes: ["/api/v1/chat"]
  port: 6001
- name: reports
  prefixes: ["/api/v1/reports", "/reports"]
  base_url: http://reports.internal:9000/
`
	path := filepath.Join(t.TempDir(), "routes.yml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	routes, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Target.Port != 6001 {
		t.Fatalf("unexpected chat port: %d", routes[0].Target.Port)
	}
	if routes[1].Target.URL() != "http://reports.internal:9000" {
		t.Fatalf("unexpected reports url: %s", routes[1].Target.URL())
	}
	if len(routes[1].Prefixes) != 2 {
		t.Fatalf("expected both prefixes kept, got %v", routes[1].Prefixes)
	}
}

func TestLoadFileRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing name":   `[{prefixes: ["/x"], port: 1}]`,
		"missing prefix": `[{name: a, port: 1}]`,
		"no target":      `[{name: a, prefixes: ["/x"]}]`,
		"both targets":   `[{name: a, prefixes: ["/x"], port: 1, base_url: "http://b"}]`,
	}
	for label, data := range cases {
		path := filepath.Join(t.TempDir(), "routes.yml")
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("%s: expected error", label)
		}
	}
}
