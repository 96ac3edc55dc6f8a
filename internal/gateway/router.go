// Package gateway implements the edge router: admission control, tracing,
// route resolution, resilient proxying, and response relay.
package gateway

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/breaker"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/proxy"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/ratelimit"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/registry"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/trace"
	"github.com/oripridan-dot/TooLoo.ai-sub016/pkg/config"
)

// Router is the gateway's request entry point. Per request it runs
// admission -> trace-start -> route-resolve -> proxy-call -> response-relay
// -> trace-end; a failure at any stage still reaches trace-end and produces
// a response.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	registry *registry.Registry
	limiter  ratelimit.Limiter
	breakers *breaker.Group
	tracer   *trace.Tracer
	proxy    *proxy.Proxy
	upgrader websocket.Upgrader

	defaultService string
	jwtSecret      string
	rateLimitCap   int
	healthTimeout  time.Duration

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	breakerFallbacks   *prometheus.CounterVec
}

// NewRouter assembles the gateway pipeline with its dependencies.
func NewRouter(logger *slog.Logger, reg *registry.Registry, limiter ratelimit.Limiter, tracer *trace.Tracer, prx *proxy.Proxy, cfg config.GatewayConfig) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		registry: reg,
		limiter:  limiter,
		breakers: prx.Breakers(),
		tracer:   tracer,
		proxy:    prx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		defaultService: cfg.DefaultService,
		jwtSecret:      strings.TrimSpace(cfg.JWTSecret),
		rateLimitCap:   cfg.RateLimitCapacity,
		healthTimeout:  cfg.HealthCheckTimeout,
	}
	if r.limiter == nil {
		r.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefillPerSec)
	}
	if r.healthTimeout <= 0 {
		r.healthTimeout = 2 * time.Second
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.handleHealthz)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/gateway/status", r.handleStatus)
	r.mux.HandleFunc("/gateway/breakers/", r.handleBreakerReset)
	r.mux.HandleFunc("/", r.handleProxy)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "gateway"})
}

func (r *Router) handleProxy(w http.ResponseWriter, req *http.Request) {
	// Admission precedes tracing: rejected requests are counted by the
	// limiter, not the tracer.
	key := r.clientKey(req)
	decision := r.limiter.Acquire(key, 1)
	r.applyRateHeaders(w, decision)
	if !decision.Allowed {
		r.rejectRateLimited(w, req, key, decision)
		return
	}

	span := r.tracer.Start("")
	w.Header().Set("X-Trace-Id", span.TraceID)

	recorder := &statusRecorder{ResponseWriter: w}
	start := time.Now()
	target := "none"
	var callErr error

	defer func() {
		if rec := recover(); rec != nil {
			callErr = fmt.Errorf("panic: %v", rec)
			if recorder.status == 0 {
				writeProxyError(recorder, span.TraceID, "internal gateway error")
			}
		}
		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.tracer.End(span, status, callErr)
		r.recordRequestMetrics(req.Method, target, status, duration)
		r.logRequest(req, span.TraceID, target, key, status, recorder.bytes, duration, callErr)
	}()

	route, ok := r.registry.Resolve(req.URL.Path)
	if !ok && r.defaultService != "" {
		route, ok = r.registry.Lookup(r.defaultService)
	}
	if !ok {
		writeError(recorder, http.StatusNotFound, "not found")
		return
	}
	target = route.Name
	span.Service = route.Name

	if isWebSocketUpgrade(req) {
		r.relayWebSocket(recorder, req, route)
		return
	}

	var body []byte
	if req.Method != http.MethodGet && req.Method != http.MethodHead && req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			callErr = err
			writeError(recorder, http.StatusBadRequest, "failed to read request body")
			return
		}
		body = data
	}

	resp, err := r.proxy.Call(req.Context(), route, proxy.Request{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header,
		Body:   body,
	})
	if err != nil {
		callErr = err
		writeProxyError(recorder, span.TraceID, err.Error())
		return
	}
	if resp.Fallback {
		r.recordBreakerFallback(route.Name)
	}

	r.relay(recorder, resp)
}

func (r *Router) rejectRateLimited(w http.ResponseWriter, req *http.Request, key string, decision ratelimit.Decision) {
	r.recordRateLimitHit(keyClass(key))
	retryAfter := decision.RetryAfter.Seconds()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"ok":         false,
		"error":      "Too many requests",
		"retryAfter": retryAfter,
	})
	r.logger.Warn("rate limit exceeded",
		"method", req.Method,
		"path", req.URL.Path,
		"key_class", keyClass(key),
		"retry_after_ms", decision.RetryAfter.Milliseconds(),
	)
}

// relay forwards the downstream response. Buffered bodies are written
// whole; event streams are piped chunk by chunk, flushing after every chunk
// so long-lived AI response streams reach the client as they are produced.
func (r *Router) relay(w http.ResponseWriter, resp *proxy.ServiceResponse) {
	headers := w.Header()
	for key, values := range resp.Header {
		headers[key] = values
	}

	if resp.Kind != proxy.BodyStream {
		w.WriteHeader(resp.Status)
		if len(resp.Body) > 0 {
			_, _ = w.Write(resp.Body)
		}
		return
	}

	w.WriteHeader(resp.Status)
	defer resp.Stream.Close()
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(r.rateLimitCap))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
}

// retryAfterSeconds renders a duration as whole seconds for the Retry-After
// header, rounding sub-second waits up to 1.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 || secs == 0 {
		secs++
	}
	return secs
}

func (r *Router) logRequest(req *http.Request, traceID, target, key string, status, bytes int, duration time.Duration, callErr error) {
	fields := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"bytes", bytes,
		"duration_ms", duration.Milliseconds(),
		"target", target,
		"trace_id", traceID,
		"actor", keyClass(key),
	}
	if ip := clientIP(req); ip != "" {
		fields = append(fields, "ip", ip)
	}
	if callErr != nil {
		fields = append(fields, "error", callErr.Error())
	}

	switch {
	case status >= http.StatusInternalServerError:
		r.logger.Error("http_request", fields...)
	case status >= http.StatusBadRequest:
		r.logger.Warn("http_request", fields...)
	default:
		r.logger.Info("http_request", fields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}
