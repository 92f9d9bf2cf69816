package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisTimeout = 2 * time.Second

// RedisCache stores float64 elevation values in Redis so that several
// processes can share lookups. Capacity is governed by the Redis server's
// own eviction policy rather than FIFO.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps an existing client. A zero ttl stores keys without expiry.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if prefix == "" {
		prefix = "geomeasure:elevation:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// OpenRedisCache parses a redis:// URL, checks the connection and returns a cache.
func OpenRedisCache(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCache(client, "", ttl, logger), nil
}

// Get returns the cached value. NaN is a valid stored value.
func (r *RedisCache) Get(key string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	v, err := r.client.Get(ctx, r.prefix+key).Float64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	return v, true
}

// Has reports whether key is present.
func (r *RedisCache) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set stores value under key.
func (r *RedisCache) Set(key string, value float64) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	raw := strconv.FormatFloat(value, 'g', -1, 64)
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key and reports whether it existed.
func (r *RedisCache) Delete(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		r.logger.Warn("redis cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
