package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/registry"
)

type routeInfo struct {
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
	Target   string   `json:"target"`
}

// handleStatus serves the operator view: limiter stats, tracer aggregates,
// breaker states, the route table, and downstream health.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	routes := r.registry.Routes()
	infos := make([]routeInfo, 0, len(routes))
	for _, route := range routes {
		infos = append(infos, routeInfo{
			Name:     route.Name,
			Prefixes: route.Prefixes,
			Target:   route.Target.URL(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"rateLimiter": r.limiter.Stats(),
		"tracer":      r.tracer.Snapshot(),
		"breakers":    r.breakers.States(),
		"routes":      infos,
		"downstream":  r.downstreamHealth(req.Context(), routes),
	})
}

// downstreamHealth probes every route's /health concurrently under one
// shared deadline.
func (r *Router) downstreamHealth(ctx context.Context, routes []registry.Route) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()

	results := make(map[string]string, len(routes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, route := range routes {
		wg.Add(1)
		go func(route registry.Route) {
			defer wg.Done()
			state := "ok"
			if err := r.proxy.CheckHealth(ctx, route); err != nil {
				state = err.Error()
			}
			mu.Lock()
			results[route.Name] = state
			mu.Unlock()
		}(route)
	}
	wg.Wait()
	return results
}

// handleBreakerReset lets an operator force a breaker closed:
// POST /gateway/breakers/{service}/reset
func (r *Router) handleBreakerReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(req.URL.Path, "/gateway/breakers/")
	service, action, ok := strings.Cut(rest, "/")
	if !ok || action != "reset" || service == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !r.breakers.Reset(service) {
		writeError(w, http.StatusNotFound, "no breaker for service "+service)
		return
	}
	r.logger.Info("breaker reset by operator", "target", service)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": service, "state": "closed"})
}
