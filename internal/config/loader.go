package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"jrm/internal/constants"
)

// LoadConfig reads configFile (optional), applies JRM_* environment
// overrides and then overrides (command-line flags) before validating.
func LoadConfig(configFile string, overrides ...func(*Config)) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("JRM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	for _, override := range overrides {
		override(&cfg)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("manager.user_agent", constants.DefaultUserAgent)

	viper.SetDefault("auth.token_env", constants.DefaultTokenEnv)
	viper.SetDefault("auth.refresh_skew", constants.DefaultRefreshSkew)

	viper.SetDefault("cache.type", constants.CacheTypeMemory)
	viper.SetDefault("cache.redis.port", 6379)
	viper.SetDefault("cache.redis.prefix", constants.CacheKeyPrefix)
	viper.SetDefault("cache.redis.ttl_seconds", constants.DefaultTTLSeconds)

	viper.SetDefault("rate_limit.rps", 10.0)
	viper.SetDefault("rate_limit.burst", 20)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 3)

	viper.SetDefault("watcher.interval_seconds", 30)
	viper.SetDefault("watcher.backoff.initial_interval", "1s")
	viper.SetDefault("watcher.backoff.max_interval", "30s")
	viper.SetDefault("watcher.backoff.multiplier", 2.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.sampler.type", "parentbased_always_on")
}

func bindEnvVariables() {
	viper.BindEnv("manager.url", "JRM_MANAGER_URL")
	viper.BindEnv("manager.user_agent", "JRM_MANAGER_USER_AGENT")

	viper.BindEnv("auth.token", "JRM_AUTH_TOKEN")
	viper.BindEnv("auth.token_env", "JRM_AUTH_TOKEN_ENV")

	viper.BindEnv("cache.type", "JRM_CACHE_TYPE")
	viper.BindEnv("cache.redis.host", "JRM_CACHE_REDIS_HOST")
	viper.BindEnv("cache.redis.port", "JRM_CACHE_REDIS_PORT")
	viper.BindEnv("cache.redis.password", "JRM_CACHE_REDIS_PASSWORD")
	viper.BindEnv("cache.redis.db", "JRM_CACHE_REDIS_DB")

	viper.BindEnv("logging.level", "JRM_LOGGING_LEVEL")
	viper.BindEnv("logging.format", "JRM_LOGGING_FORMAT")

	viper.BindEnv("tracing.enabled", "JRM_TRACING_ENABLED")
	viper.BindEnv("tracing.otlp.endpoint", "JRM_TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "JRM_TRACING_OTLP_INSECURE")
}

func applyEnvOverrides(cfg *Config) {
	cfg.Manager.URL = strings.TrimSpace(cfg.Manager.URL)
	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
}
