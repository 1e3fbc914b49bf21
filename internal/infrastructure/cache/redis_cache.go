package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultScanBatchSize = 100
	defaultDelBatchSize  = 100
	pingTimeout          = 5 * time.Second
)

// RedisCache implements Cache on a Redis server
type RedisCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisCacheOption configures a RedisCache
type RedisCacheOption func(*RedisCache)

// WithRedisLogger sets the logger for the cache
func WithRedisLogger(logger *zap.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCache connects to Redis and returns a cache that owns the client
func NewRedisCache(cfg config.RedisConfig, opts ...RedisCacheOption) (*RedisCache, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	c := NewRedisCacheWithClient(client, opts...)
	c.ownsClient = true
	return c, nil
}

// NewRedisCacheWithClient wraps an existing client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisCacheWithClient(client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, true, nil
}

// Set implements Cache. A non-positive ttl stores the key without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Del implements Cache. Keys are deleted in pipelined batches so large
// invalidations take a single round trip.
func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for start := 0; start < len(keys); start += defaultDelBatchSize {
			end := min(start+defaultDelBatchSize, len(keys))
			pipe.Del(ctx, keys[start:end]...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del %d keys: %w", len(keys), err)
	}
	return nil
}

// Keys implements Cache with SCAN so Redis is never blocked by KEYS
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	seen := make(map[string]struct{})
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		// SCAN may return a key more than once
		for _, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close releases the client if the cache created it
func (c *RedisCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

var (
	_ Cache  = (*RedisCache)(nil)
	_ Pinger = (*RedisCache)(nil)
)
