package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"jrm/internal/constants"
	"jrm/internal/logger"
)

const redisOpTimeout = 2 * time.Second

// RedisCache shares cached responses between processes. httpcache's Cache
// interface has no context, so each operation runs under its own timeout;
// a failing Redis degrades to cache misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedis stores entries under prefix+key. Entries expire after ttl even
// when still fresh by HTTP rules; ttl <= 0 keeps them until overwritten.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, log logger.Logger) *RedisCache {
	if prefix == "" {
		prefix = constants.CacheKeyPrefix
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warnw("Redis cache read failed", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(key string, resp []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, resp, ttl).Err(); err != nil {
		c.logger.Warnw("Redis cache write failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warnw("Redis cache delete failed", "key", key, "error", err)
	}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
