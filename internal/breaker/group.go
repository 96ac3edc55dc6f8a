package breaker

import (
	"sync"
	"time"
)

// Group owns one breaker per downstream service so failure in one service
// cannot blind the others. Breakers are created lazily on first use.
type Group struct {
	mu           sync.RWMutex
	breakers     map[string]*Breaker
	threshold    int
	resetTimeout time.Duration
}

// NewGroup constructs a Group applying the given defaults to new breakers.
func NewGroup(threshold int, resetTimeout time.Duration) *Group {
	return &Group{
		breakers:     make(map[string]*Breaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// For returns the breaker for a service, creating it on first call.
func (g *Group) For(service string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[service]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[service]; ok {
		return b
	}
	b = New(g.threshold, g.resetTimeout)
	g.breakers[service] = b
	return b
}

// Reset forces a service's breaker closed. Reports whether it existed.
func (g *Group) Reset(service string) bool {
	g.mu.RLock()
	b, ok := g.breakers[service]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}

// States returns a snapshot of every breaker keyed by service name.
func (g *Group) States() map[string]Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Snapshot, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.Snapshot()
	}
	return out
}
