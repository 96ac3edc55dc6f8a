// Package registry maps inbound request paths to downstream services.
package registry

import (
	"fmt"
	"strings"

	"github.com/oripridan-dot/TooLoo.ai-sub016/pkg/config"
)

// Target is the destination a route's traffic is sent to. Either BaseURL is
// set (remote service) or Host/Port are (local process).
type Target struct {
	Host    string
	Port    int
	BaseURL string
}

// Local builds a target for a service listening on the local host.
func Local(port int) Target {
	return Target{Host: "127.0.0.1", Port: port}
}

// Remote builds a target from a base URL.
func Remote(baseURL string) Target {
	return Target{BaseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns the base URL requests to this target are built from.
func (t Target) URL() string {
	if t.BaseURL != "" {
		return strings.TrimRight(t.BaseURL, "/")
	}
	host := t.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, t.Port)
}

// Route binds a named service to an ordered list of path prefixes.
type Route struct {
	Name     string
	Prefixes []string
	Target   Target
}

// Registry is an immutable, ordered route table. The first registered route
// whose prefix matches a request path wins, so specific prefixes must be
// registered before generic catch-alls.
type Registry struct {
	routes []Route
	byName map[string]Route
}

// New builds a Registry from routes in precedence order.
func New(routes ...Route) *Registry {
	r := &Registry{
		routes: make([]Route, len(routes)),
		byName: make(map[string]Route, len(routes)),
	}
	copy(r.routes, routes)
	for _, route := range routes {
		if _, exists := r.byName[route.Name]; !exists {
			r.byName[route.Name] = route
		}
	}
	return r
}

// Resolve returns the first route with a prefix matching path.
func (r *Registry) Resolve(path string) (Route, bool) {
	for _, route := range r.routes {
		for _, prefix := range route.Prefixes {
			if strings.HasPrefix(path, prefix) {
				return route, true
			}
		}
	}
	return Route{}, false
}

// Lookup returns a route by service name.
func (r *Registry) Lookup(name string) (Route, bool) {
	route, ok := r.byName[name]
	return route, ok
}

// Routes returns a copy of the route table for read-only listing.
func (r *Registry) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// DefaultRoutes returns the platform's static service fleet. Specific
// service prefixes precede the generic /api/v1 catch-all so overrides win.
// Per-service env overrides: SERVICE_<NAME>_URL takes a full base URL,
// SERVICE_<NAME>_PORT a local port.
func DefaultRoutes() []Route {
	defaults := []struct {
		name     string
		prefixes []string
		port     int
	}{
		{"chat", []string{"/api/v1/chat"}, 5001},
		{"training", []string{"/api/v1/training"}, 5002},
		{"budget", []string{"/api/v1/budget"}, 5003},
		{"reports", []string{"/api/v1/reports"}, 5004},
		{"capabilities", []string{"/api/v1/capabilities"}, 5005},
		{"segmentation", []string{"/api/v1/segmentation"}, 5006},
		{"guide", []string{"/api/v1/guide"}, 5007},
		{"web", []string{"/api/v1"}, 5000},
	}

	routes := make([]Route, 0, len(defaults))
	for _, d := range defaults {
		envKey := strings.ToUpper(d.name)
		target := Local(config.GetInt("SERVICE_"+envKey+"_PORT", d.port))
		if base := config.GetString("SERVICE_"+envKey+"_URL", ""); base != "" {
			target = Remote(base)
		}
		routes = append(routes, Route{Name: d.name, Prefixes: d.prefixes, Target: target})
	}
	return routes
}
