package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracer(rate float64) (*Tracer, *time.Time) {
	tr := New(rate)
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestStartAllocatesDistinctIDs(t *testing.T) {
	tr, _ := newTestTracer(1)

	a := tr.Start("chat")
	b := tr.Start("chat")

	assert.Len(t, a.TraceID, 32)
	assert.Len(t, a.SpanID, 16)
	assert.NotEqual(t, a.TraceID, b.TraceID)
	assert.NotEqual(t, a.SpanID, b.SpanID)
	assert.True(t, a.Sampled, "rate 1.0 samples everything")
}

func TestSamplingDecision(t *testing.T) {
	tr, _ := newTestTracer(0)
	assert.False(t, tr.Start("chat").Sampled, "rate 0 samples nothing")

	tr2, _ := newTestTracer(0.5)
	tr2.randFloat = func() float64 { return 0.49 }
	assert.True(t, tr2.Start("chat").Sampled)
	tr2.randFloat = func() float64 { return 0.51 }
	assert.False(t, tr2.Start("chat").Sampled)
}

func TestAggregatesCountUnsampledTraces(t *testing.T) {
	tr, now := newTestTracer(0)

	span := tr.Start("chat")
	*now = now.Add(40 * time.Millisecond)
	tr.End(span, 200, nil)

	span = tr.Start("chat")
	*now = now.Add(80 * time.Millisecond)
	tr.End(span, 502, errors.New("connect refused"))

	m := tr.Metrics()
	assert.Equal(t, uint64(2), m.Total)
	assert.Equal(t, uint64(1), m.Errors)
	assert.InDelta(t, 0.5, m.ErrorRate, 1e-9)
	assert.Greater(t, m.P95Latency, m.P50Latency)

	snap := tr.Snapshot()
	assert.Empty(t, snap.RecentSpans, "unsampled spans keep no detail")
	assert.Equal(t, uint64(0), snap.SampledCount)
}

func TestErrorClassification(t *testing.T) {
	tr, _ := newTestTracer(0)

	tr.End(tr.Start("a"), 200, nil)
	tr.End(tr.Start("a"), 404, nil)
	tr.End(tr.Start("a"), 500, nil)
	tr.End(tr.Start("a"), 200, errors.New("boom"))

	m := tr.Metrics()
	assert.Equal(t, uint64(4), m.Total)
	assert.Equal(t, uint64(2), m.Errors, "5xx and call errors count; 4xx does not")
}

func TestSampledSpanRecords(t *testing.T) {
	tr, now := newTestTracer(1)

	span := tr.Start("budget")
	*now = now.Add(25 * time.Millisecond)
	tr.End(span, 503, errors.New("budget service temporarily unavailable"))

	snap := tr.Snapshot()
	require.Len(t, snap.RecentSpans, 1)
	rec := snap.RecentSpans[0]
	assert.Equal(t, span.TraceID, rec.TraceID)
	assert.Equal(t, "budget", rec.Service)
	assert.Equal(t, 503, rec.Status)
	assert.InDelta(t, 25, rec.DurationMS, 1e-9)
	assert.Contains(t, rec.Error, "temporarily unavailable")
}

func TestSampledSpansAreBounded(t *testing.T) {
	tr, _ := newTestTracer(1)

	for i := 0; i < maxSampledSpans+10; i++ {
		tr.End(tr.Start("chat"), 200, nil)
	}

	snap := tr.Snapshot()
	assert.Len(t, snap.RecentSpans, maxSampledSpans)
	assert.Equal(t, uint64(maxSampledSpans+10), snap.SampledCount)
}

func TestPercentiles(t *testing.T) {
	tr, now := newTestTracer(0)

	// 100 traces at 1..100ms.
	for i := 1; i <= 100; i++ {
		span := tr.Start("chat")
		*now = now.Add(time.Duration(i) * time.Millisecond)
		tr.End(span, 200, nil)
		// Rewind so each span's duration is exactly i ms.
		*now = now.Add(-time.Duration(i) * time.Millisecond)
		_ = span
	}

	m := tr.Metrics()
	assert.InDelta(t, 51, m.P50Latency, 1)
	assert.InDelta(t, 96, m.P95Latency, 1)
}
