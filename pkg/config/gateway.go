package config

import "time"

// GatewayConfig holds runtime configuration for the gateway process.
type GatewayConfig struct {
	Environment             string
	Addr                    string
	LogLevel                string
	RoutesFile              string
	DefaultService          string
	JWTSecret               string
	RateLimitCapacity       int
	RateLimitRefillPerSec   float64
	RateLimitRedisAddr      string
	RateLimitRedisPass      string
	RateLimitRedisDB        int
	BreakerFailureThreshold int
	BreakerResetTimeout     time.Duration
	RetryMaxAttempts        int
	RetryBackoff            time.Duration
	TraceSampleRate         float64
	ProxyTimeout            time.Duration
	HealthCheckTimeout      time.Duration
}

// LoadGatewayConfig constructs a GatewayConfig from environment variables.
func LoadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Environment:             GetString("APP_ENV", "development"),
		Addr:                    GetString("GATEWAY_ADDR", ":4000"),
		LogLevel:                GetString("GATEWAY_LOG_LEVEL", "info"),
		RoutesFile:              GetString("GATEWAY_ROUTES_FILE", ""),
		DefaultService:          GetString("GATEWAY_DEFAULT_SERVICE", "web"),
		JWTSecret:               GetString("GATEWAY_JWT_SECRET", ""),
		RateLimitCapacity:       GetInt("RATE_LIMIT_CAPACITY", 1000),
		RateLimitRefillPerSec:   GetFloat("RATE_LIMIT_REFILL_PER_SEC", 100),
		RateLimitRedisAddr:      GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:      GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:        GetInt("RATE_LIMIT_REDIS_DB", 0),
		BreakerFailureThreshold: GetInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerResetTimeout:     time.Duration(GetInt("BREAKER_RESET_TIMEOUT_MS", 30000)) * time.Millisecond,
		RetryMaxAttempts:        GetInt("RETRY_MAX_ATTEMPTS", 2),
		RetryBackoff:            time.Duration(GetInt("RETRY_BACKOFF_MS", 100)) * time.Millisecond,
		TraceSampleRate:         GetFloat("TRACE_SAMPLE_RATE", 0.10),
		ProxyTimeout:            time.Duration(GetInt("PROXY_TIMEOUT_SECONDS", 30)) * time.Second,
		HealthCheckTimeout:      time.Duration(GetInt("HEALTH_CHECK_TIMEOUT_SECONDS", 2)) * time.Second,
	}
}
