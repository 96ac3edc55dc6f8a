package ratelimit

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	sweepInterval = 5 * time.Minute
	bucketIdleTTL = 10 * time.Minute
)

// memoryLimiter implements a per-key token bucket. Each bucket refills at
// refillPerSec up to capacity; admission spends cost tokens. Buckets are
// independent: the map mutex covers only lookup/insert, every update runs
// under the bucket's own lock.
type memoryLimiter struct {
	capacity     float64
	refillPerSec float64

	mu      sync.Mutex
	buckets map[string]*bucket

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stopCh chan struct{}
	once   sync.Once
	now    func() time.Time
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// NewMemoryLimiter constructs an in-process token bucket limiter and starts
// its idle-bucket sweeper.
func NewMemoryLimiter(capacity int, refillPerSec float64) Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	l := &memoryLimiter{
		capacity:     float64(capacity),
		refillPerSec: refillPerSec,
		buckets:      make(map[string]*bucket),
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
	go l.sweepLoop()
	return l
}

func (l *memoryLimiter) Acquire(key string, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastSeen).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.refillPerSec)
	}
	b.lastSeen = now

	fcost := float64(cost)
	if b.tokens >= fcost {
		b.tokens -= fcost
		l.allowed.Add(1)
		return Decision{Allowed: true, Remaining: int(b.tokens)}
	}

	l.rejected.Add(1)
	waitSec := (fcost - b.tokens) / l.refillPerSec
	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: time.Duration(waitSec * float64(time.Second)),
	}
}

func (l *memoryLimiter) Stats() Stats {
	l.mu.Lock()
	count := len(l.buckets)
	l.mu.Unlock()
	return Stats{
		Buckets:  count,
		Allowed:  l.allowed.Load(),
		Rejected: l.rejected.Load(),
	}
}

func (l *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(l.now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle long enough to have fully refilled; recreating
// them on next use is equivalent to keeping them.
func (l *memoryLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen)
		b.mu.Unlock()
		if idle > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *memoryLimiter) Close() {
	l.once.Do(func() {
		close(l.stopCh)
	})
}
