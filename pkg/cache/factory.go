package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jrm/internal/config"
	"jrm/internal/constants"
	"jrm/internal/logger"
)

// FromConfig builds the backend selected by cfg.Type. A nil Cache means
// caching is disabled. The returned Redis client is nil unless the redis
// backend was selected; the caller owns closing it.
func FromConfig(cfg config.CacheConfig, log logger.Logger) (Cache, *redis.Client, error) {
	switch cfg.Type {
	case "", constants.CacheTypeMemory:
		return NewMemory(), nil, nil
	case constants.CacheTypeNone:
		return nil, nil, nil
	case constants.CacheTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
		return NewRedis(client, cfg.Redis.Prefix, ttl, log), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
