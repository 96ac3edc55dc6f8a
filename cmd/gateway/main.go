package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/breaker"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/gateway"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/proxy"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/ratelimit"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/registry"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/retry"
	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/trace"
	"github.com/oripridan-dot/TooLoo.ai-sub016/pkg/config"
	"github.com/oripridan-dot/TooLoo.ai-sub016/pkg/logger"
)

func main() {
	cfg := config.LoadGatewayConfig()
	log := logger.New("gateway", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routes := registry.DefaultRoutes()
	if cfg.RoutesFile != "" {
		loaded, err := registry.LoadFile(cfg.RoutesFile)
		if err != nil {
			log.Error("failed to load routes file", "path", cfg.RoutesFile, "error", err)
			os.Exit(1)
		}
		routes = loaded
	}
	reg := registry.New(routes...)
	log.Info("route table loaded", "routes", len(routes))

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefillPerSec)
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, cfg.RateLimitCapacity, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable, using in-memory buckets", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	breakers := breaker.NewGroup(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout)
	tracer := trace.New(cfg.TraceSampleRate)
	prx := proxy.New(breakers, retry.Config{
		MaxAttempts: cfg.RetryMaxAttempts,
		Backoff:     cfg.RetryBackoff,
	}, cfg.ProxyTimeout, log)

	router := gateway.NewRouter(log, reg, limiter, tracer, prx, cfg)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("gateway starting", "addr", cfg.Addr, "environment", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("gateway stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
