package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tooloo",
			Subsystem: "gateway",
			Name:      "http_requests_total",
			Help:      "Count of proxied HTTP requests",
		}, []string{"method", "target", "status"})

		r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tooloo",
			Subsystem: "gateway",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of proxied requests",
			Buckets:   histogramBuckets,
		}, []string{"method", "target", "status"})

		r.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tooloo",
			Subsystem: "gateway",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"key"})

		r.breakerFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tooloo",
			Subsystem: "gateway",
			Name:      "breaker_fallbacks_total",
			Help:      "Synthetic 503 responses served while a breaker was open",
		}, []string{"target"})

		collectors := []prometheus.Collector{r.requestTotal, r.requestLatency, r.rateLimitHits, r.breakerFallbacks}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						switch collector {
						case r.requestTotal:
							r.requestTotal = v
						case r.rateLimitHits:
							r.rateLimitHits = v
						case r.breakerFallbacks:
							r.breakerFallbacks = v
						}
					case *prometheus.HistogramVec:
						r.requestLatency = v
					}
				}
			}
		}
		r.metricsInitialized = true
	})
}

func (r *Router) recordRequestMetrics(method, target string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"target": target,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"key": key}).Inc()
}

func (r *Router) recordBreakerFallback(target string) {
	if !r.metricsInitialized {
		return
	}
	r.breakerFallbacks.With(prometheus.Labels{"target": target}).Inc()
}
