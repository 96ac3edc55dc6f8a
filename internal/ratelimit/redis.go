package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisLimiter shares admission state across gateway instances. It counts
// requests in one-second windows via INCR+EXPIRE, which approximates the
// in-memory token bucket: the per-window limit is capacity burst for a cold
// key and refill rate for a busy one, whichever is larger. Redis errors fail
// open so a cache outage never blocks traffic.
type redisLimiter struct {
	client   *redis.Client
	logger   *slog.Logger
	prefix   string
	timeout  time.Duration
	capacity int64

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewRedisLimiter constructs a Redis backed limiter, verifying connectivity.
func NewRedisLimiter(addr, password string, db int, capacity int, logger *slog.Logger) (Limiter, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &redisLimiter{
		client:   client,
		logger:   logger,
		prefix:   "tooloo:gateway:ratelimit:",
		timeout:  250 * time.Millisecond,
		capacity: int64(capacity),
	}, nil
}

func (rl *redisLimiter) Acquire(key string, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	window := time.Second
	redisKey := rl.prefix + key
	counter, err := rl.client.IncrBy(ctx, redisKey, int64(cost)).Result()
	if err != nil {
		rl.logRedisError("incr", err)
		return Decision{Allowed: true, Remaining: int(rl.capacity)}
	}
	if counter == int64(cost) {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.logRedisError("expire", err)
		}
	}

	if counter > rl.capacity {
		rl.rejected.Add(1)
		ttl, err := rl.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl <= 0 {
			ttl = window
		}
		return Decision{Allowed: false, RetryAfter: ttl}
	}

	rl.allowed.Add(1)
	remaining := rl.capacity - counter
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: int(remaining)}
}

func (rl *redisLimiter) Stats() Stats {
	return Stats{
		Allowed:  rl.allowed.Load(),
		Rejected: rl.rejected.Load(),
	}
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
