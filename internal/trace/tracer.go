// Package trace generates per-request trace spans, applies sampling, and
// aggregates latency metrics for the observability endpoint.
package trace

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	latencyRingSize = 1024
	maxSampledSpans = 256
)

// Span identifies one inbound request. It is created at trace start and
// handed back to End when the response has been written.
type Span struct {
	TraceID   string
	SpanID    string
	Service   string
	StartedAt time.Time
	Sampled   bool
}

// Record is the immutable result of a sampled span.
type Record struct {
	TraceID    string    `json:"trace_id"`
	SpanID     string    `json:"span_id"`
	Service    string    `json:"service"`
	Status     int       `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// Metrics are aggregate counts computed incrementally over every trace,
// sampled or not.
type Metrics struct {
	Total      uint64  `json:"total"`
	Errors     uint64  `json:"errors"`
	ErrorRate  float64 `json:"error_rate"`
	P50Latency float64 `json:"p50_latency_ms"`
	P95Latency float64 `json:"p95_latency_ms"`
}

// Snapshot is Metrics plus the most recent sampled span records.
type Snapshot struct {
	Metrics
	SampleRate   float64  `json:"sample_rate"`
	RecentSpans  []Record `json:"recent_spans"`
	SampledCount uint64   `json:"sampled"`
}

// Tracer allocates ids, decides sampling, and aggregates outcomes. All
// methods are safe for concurrent use.
type Tracer struct {
	sampleRate float64

	mu        sync.Mutex
	total     uint64
	errors    uint64
	sampledN  uint64
	latencies [latencyRingSize]float64
	latIdx    int
	latCount  int
	sampled   []Record

	randFloat func() float64
	now       func() time.Time
}

// New constructs a Tracer sampling the given fraction of requests in [0,1].
func New(sampleRate float64) *Tracer {
	if sampleRate < 0 {
		sampleRate = 0
	}
	if sampleRate > 1 {
		sampleRate = 1
	}
	return &Tracer{
		sampleRate: sampleRate,
		sampled:    make([]Record, 0, maxSampledSpans),
		randFloat:  rand.Float64,
		now:        time.Now,
	}
}

// Start allocates trace and span ids and makes the sampling decision. The
// service name may be filled in later, once routing has resolved it.
func (t *Tracer) Start(service string) Span {
	traceUUID := uuid.New()
	spanUUID := uuid.New()
	return Span{
		TraceID:   fmt.Sprintf("%x", traceUUID[:]),
		SpanID:    fmt.Sprintf("%x", spanUUID[:8]),
		Service:   service,
		StartedAt: t.now(),
		Sampled:   t.randFloat() < t.sampleRate,
	}
}

// End closes a span with the response status. Aggregate counters always
// update; the detailed record is retained only for sampled spans.
func (t *Tracer) End(span Span, status int, callErr error) {
	duration := t.now().Sub(span.StartedAt)
	durationMS := float64(duration) / float64(time.Millisecond)
	failed := callErr != nil || status >= 500

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if failed {
		t.errors++
	}
	t.latencies[t.latIdx] = durationMS
	t.latIdx = (t.latIdx + 1) % latencyRingSize
	if t.latCount < latencyRingSize {
		t.latCount++
	}

	if !span.Sampled {
		return
	}
	t.sampledN++
	rec := Record{
		TraceID:    span.TraceID,
		SpanID:     span.SpanID,
		Service:    span.Service,
		Status:     status,
		DurationMS: durationMS,
		StartedAt:  span.StartedAt,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	if len(t.sampled) == maxSampledSpans {
		copy(t.sampled, t.sampled[1:])
		t.sampled = t.sampled[:maxSampledSpans-1]
	}
	t.sampled = append(t.sampled, rec)
}

// Metrics returns aggregates over all traces regardless of sampling.
func (t *Tracer) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metricsLocked()
}

func (t *Tracer) metricsLocked() Metrics {
	m := Metrics{Total: t.total, Errors: t.errors}
	if t.total > 0 {
		m.ErrorRate = float64(t.errors) / float64(t.total)
	}
	if t.latCount > 0 {
		window := make([]float64, t.latCount)
		copy(window, t.latencies[:t.latCount])
		sort.Float64s(window)
		m.P50Latency = percentile(window, 0.50)
		m.P95Latency = percentile(window, 0.95)
	}
	return m
}

// Snapshot returns aggregates plus recent sampled spans, newest last.
func (t *Tracer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := make([]Record, len(t.sampled))
	copy(spans, t.sampled)
	return Snapshot{
		Metrics:      t.metricsLocked(),
		SampleRate:   t.sampleRate,
		RecentSpans:  spans,
		SampledCount: t.sampledN,
	}
}

// percentile expects sorted input.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
