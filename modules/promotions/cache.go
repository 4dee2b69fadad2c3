package promotions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds the public active-promotions listing. Misses and failures
// fall through to storage; the cache is an optimization, never a source of
// truth.
type Cache interface {
	Get(ctx context.Context) ([]PublicView, bool)
	Set(ctx context.Context, items []PublicView)
	Invalidate(ctx context.Context)
}

// NopCache disables caching. Used in tests and when Redis is not
// configured.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]PublicView, bool) { return nil, false }
func (NopCache) Set(context.Context, []PublicView)        {}
func (NopCache) Invalidate(context.Context)               {}

const (
	activeCacheKey = "promotions:active"
	defaultTTL     = 5 * time.Minute
)

// RedisCache stores the active listing as a single JSON blob under a fixed
// key with a short TTL. Any mutation to promotions invalidates it.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithTTL overrides the cache entry lifetime.
func WithTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger for cache failures.
func WithCacheLogger(log *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewRedisCache creates a Redis-backed active-promotions cache.
func NewRedisCache(client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		ttl:    defaultTTL,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context) ([]PublicView, bool) {
	raw, err := c.client.Get(ctx, activeCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.LogAttrs(ctx, slog.LevelWarn, "promotion cache read failed",
				slog.String("error", err.Error()))
		}
		return nil, false
	}

	var items []PublicView
	if err := json.Unmarshal(raw, &items); err != nil {
		c.log.LogAttrs(ctx, slog.LevelWarn, "promotion cache entry corrupt",
			slog.String("error", err.Error()))
		return nil, false
	}
	return items, true
}

func (c *RedisCache) Set(ctx context.Context, items []PublicView) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, activeCacheKey, raw, c.ttl).Err(); err != nil {
		c.log.LogAttrs(ctx, slog.LevelWarn, "promotion cache write failed",
			slog.String("error", err.Error()))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, activeCacheKey).Err(); err != nil {
		c.log.LogAttrs(ctx, slog.LevelWarn, "promotion cache invalidation failed",
			slog.String("error", err.Error()))
	}
}
