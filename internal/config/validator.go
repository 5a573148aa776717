package config

import (
	"fmt"
	"net/url"

	"jrm/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateManager(cfg.Manager); err != nil {
		errors = append(errors, err)
	}

	if err := validateCache(cfg.Cache); err != nil {
		errors = append(errors, err)
	}

	if err := validateRateLimit(cfg.RateLimit); err != nil {
		errors = append(errors, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errors = append(errors, err)
	}

	if err := validateWatcher(cfg.Watcher); err != nil {
		errors = append(errors, err)
	}

	if err := validateLogging(cfg.Logging); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateManager(cfg ManagerConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "manager.url",
			Message: "manager URL is required",
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{
			Field:   "manager.url",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.URL),
		}
	}

	return nil
}

func validateCache(cfg CacheConfig) error {
	switch cfg.Type {
	case constants.CacheTypeMemory, constants.CacheTypeNone:
		return nil
	case constants.CacheTypeRedis:
		return validateRedis(cfg.Redis)
	default:
		return &ValidationError{
			Field:   "cache.type",
			Message: fmt.Sprintf("unknown cache type: %s (supported: memory, redis, none)", cfg.Type),
		}
	}
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "cache.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "cache.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "cache.redis.db",
			Message: "db must be non-negative",
		}
	}

	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "cache.redis.ttl_seconds",
			Message: "ttl_seconds must be non-negative",
		}
	}

	return nil
}

func validateRateLimit(cfg RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.RPS <= 0 {
		return &ValidationError{
			Field:   "rate_limit.rps",
			Message: "rps must be positive",
		}
	}

	if cfg.Burst < 1 {
		return &ValidationError{
			Field:   "rate_limit.burst",
			Message: "burst must be at least 1",
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: "failure_ratio must be between 0 and 1",
		}
	}

	if cfg.Timeout < 0 || cfg.Interval < 0 {
		return &ValidationError{
			Field:   "circuit_breaker.timeout",
			Message: "timeout and interval must be non-negative",
		}
	}

	return nil
}

func validateWatcher(cfg WatcherConfig) error {
	if cfg.IntervalSeconds < 1 {
		return &ValidationError{
			Field:   "watcher.interval_seconds",
			Message: "interval must be at least 1 second",
		}
	}

	if cfg.JitterMaxMilliseconds < 0 {
		return &ValidationError{
			Field:   "watcher.jitter_max_milliseconds",
			Message: "jitter must be non-negative",
		}
	}

	if cfg.Backoff.InitialInterval < 0 || cfg.Backoff.MaxInterval < 0 {
		return &ValidationError{
			Field:   "watcher.backoff",
			Message: "intervals must be non-negative",
		}
	}

	if cfg.Backoff.MaxInterval > 0 && cfg.Backoff.InitialInterval > 0 && cfg.Backoff.MaxInterval < cfg.Backoff.InitialInterval {
		return &ValidationError{
			Field:   "watcher.backoff.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Backoff.Multiplier < 1 {
		return &ValidationError{
			Field:   "watcher.backoff.multiplier",
			Message: "multiplier must be at least 1",
		}
	}

	return nil
}

func validateLogging(cfg LoggingConfig) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level: %s", cfg.Level),
		}
	}

	switch cfg.Format {
	case "json", "console":
	default:
		return &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format: %s", cfg.Format),
		}
	}

	return nil
}
