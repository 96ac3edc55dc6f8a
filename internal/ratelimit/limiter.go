// Package ratelimit provides per-client admission control for the gateway.
package ratelimit

import "time"

// Decision reports the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter estimates how long the client must wait before the
	// requested cost could be admitted. Zero when allowed.
	RetryAfter time.Duration
}

// Stats is a point-in-time snapshot for the observability endpoint.
type Stats struct {
	Buckets  int    `json:"buckets"`
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
}

// Limiter admits requests per client key.
type Limiter interface {
	Acquire(key string, cost int) Decision
	Stats() Stats
	Close()
}
