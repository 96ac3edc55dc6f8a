// Package breaker implements per-service circuit breaking for the gateway.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker position in its recovery state machine.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Failing; calls are rejected immediately.
	StateHalfOpen              // Probing; a single trial call is allowed.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of one breaker for observability.
type Snapshot struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// Breaker tracks consecutive failures for one downstream service.
//
// Closed: failures increment a counter; reaching the threshold opens the
// breaker. Open: calls are rejected until the reset timeout elapses, then a
// single half-open probe is admitted. A successful probe closes the breaker,
// a failed one reopens it and restarts the timer.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	probing      bool
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
}

// New constructs a closed breaker.
func New(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. In half-open state only one
// in-flight probe is admitted; concurrent calls are rejected until the probe
// reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.state = StateClosed
}

// RecordFailure reports a failed call (error or 5xx).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		b.state = StateOpen
		b.openedAt = b.now()
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateOpen:
		// Late failure from a call admitted before the trip; the timer
		// is already running.
	}
}

// Discard releases an admitted call without counting it either way, e.g.
// when the client cancelled before the downstream answered. A discarded
// half-open probe leaves the breaker half-open so the next call probes again.
func (b *Breaker) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current state, performing the open-to-half-open
// transition if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed. Operator action.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.openedAt = time.Time{}
}

// Snapshot captures the breaker for the observability endpoint.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
	}
	if !b.openedAt.IsZero() {
		opened := b.openedAt
		snap.OpenedAt = &opened
	}
	return snap
}
