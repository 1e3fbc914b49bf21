package cache

import (
	"context"
	"time"
)

// Cache is an advisory key/value store with per-entry TTL.
// A miss is reported as (nil, false, nil). Keys follows Redis glob rules.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Pinger is implemented by caches backed by a remote server
type Pinger interface {
	Ping(ctx context.Context) error
}
