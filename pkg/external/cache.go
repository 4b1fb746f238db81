package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
)

const productKeyPrefix = "ingrescan:product:"

// RedisProductCache implements domain.ProductCache on Redis
type RedisProductCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// cachedProduct wraps a product record with cache metadata
type cachedProduct struct {
	Data      *domain.ProductRecord `json:"data"`
	CachedAt  time.Time             `json:"cached_at"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// NewRedisProductCache connects to Redis and verifies the connection.
func NewRedisProductCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisProductCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisProductCache{
		redis:      client,
		defaultTTL: ttl,
		logger:     logger,
	}, nil
}

// Get implements domain.ProductCache. Read failures count as misses.
func (c *RedisProductCache) Get(ctx context.Context, barcode string) (*domain.ProductRecord, bool) {
	key := productKeyPrefix + barcode

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithFields(logrus.Fields{"barcode": barcode, "error": err}).Warn("Product cache read failed")
		return nil, false
	}

	var cached cachedProduct
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false
	}

	if time.Now().After(cached.ExpiresAt) || cached.Data == nil {
		c.redis.Del(ctx, key)
		return nil, false
	}

	return cached.Data, true
}

// Set implements domain.ProductCache
func (c *RedisProductCache) Set(ctx context.Context, barcode string, product *domain.ProductRecord) error {
	if product == nil {
		return nil
	}

	now := time.Now()
	jsonData, err := json.Marshal(cachedProduct{
		Data:      product,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal product cache data: %w", err)
	}

	return c.redis.Set(ctx, productKeyPrefix+barcode, jsonData, c.defaultTTL).Err()
}

// Invalidate removes a cached product.
func (c *RedisProductCache) Invalidate(ctx context.Context, barcode string) error {
	return c.redis.Del(ctx, productKeyPrefix+barcode).Err()
}

// Ping checks the Redis connection.
func (c *RedisProductCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisProductCache) Close() error {
	return c.redis.Close()
}
