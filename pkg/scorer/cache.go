package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "moca:predictions:"

// PredictionCache stores scorer output keyed by request payload.
type PredictionCache interface {
	Get(ctx context.Context, key string) ([]domain.PredictionRecord, bool)
	Set(ctx context.Context, key string, records []domain.PredictionRecord)
}

// CacheKey derives the cache key for a request payload. Identical histories
// produce identical payloads and therefore share predictions.
func CacheKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, []domain.PredictionRecord]
}

// NewMemoryCache creates a new in-memory prediction cache
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, []domain.PredictionRecord](size, nil, ttl),
	}
}

// Get returns cached predictions for key
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.PredictionRecord, bool) {
	return c.lru.Get(key)
}

// Set caches predictions under key
func (c *MemoryCache) Set(_ context.Context, key string, records []domain.PredictionRecord) {
	c.lru.Add(key, records)
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// cachedPredictions is the Redis value layout
type cachedPredictions struct {
	Records   []domain.PredictionRecord `json:"records"`
	CachedAt  time.Time                 `json:"cached_at"`
	ExpiresAt time.Time                 `json:"expires_at"`
}

// RedisCache shares predictions between engine instances.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{redis: client, ttl: config.TTL, logger: logger}, nil
}

// Get returns cached predictions; Redis errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.PredictionRecord, bool) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read prediction cache")
		return nil, false
	}

	var cached cachedPredictions
	if err := json.Unmarshal(val, &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}
	return cached.Records, true
}

// Set caches predictions under key
func (c *RedisCache) Set(ctx context.Context, key string, records []domain.PredictionRecord) {
	now := time.Now()
	data, err := json.Marshal(cachedPredictions{
		Records:   records,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode prediction cache entry")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to write prediction cache")
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// TieredCache checks memory first and falls back to Redis, promoting hits.
type TieredCache struct {
	memory  *MemoryCache
	redis   *RedisCache
	metrics *Metrics
}

// NewTieredCache combines the two tiers. redis may be nil.
func NewTieredCache(memory *MemoryCache, redis *RedisCache, metrics *Metrics) *TieredCache {
	return &TieredCache{memory: memory, redis: redis, metrics: metrics}
}

// Get looks up key in each tier in turn
func (c *TieredCache) Get(ctx context.Context, key string) ([]domain.PredictionRecord, bool) {
	if records, ok := c.memory.Get(ctx, key); ok {
		c.metrics.IncCacheHit("memory")
		return records, true
	}
	if c.redis != nil {
		if records, ok := c.redis.Get(ctx, key); ok {
			c.metrics.IncCacheHit("redis")
			c.memory.Set(ctx, key, records)
			return records, true
		}
	}
	c.metrics.IncCacheMiss()
	return nil, false
}

// Set writes key to every tier
func (c *TieredCache) Set(ctx context.Context, key string, records []domain.PredictionRecord) {
	c.memory.Set(ctx, key, records)
	if c.redis != nil {
		c.redis.Set(ctx, key, records)
	}
}
