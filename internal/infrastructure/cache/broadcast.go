package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultBroadcastChannel = "cache:invalidate"
	defaultCloseTimeout     = 5 * time.Second
)

// EvictionMessage tells other instances to drop keys from their L1 layer
type EvictionMessage struct {
	Keys      []string `json:"keys"`
	Origin    string   `json:"origin,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// RedisBroadcaster fans out evictions over Redis Pub/Sub
type RedisBroadcaster struct {
	client   *redis.Client
	channel  string
	origin   string
	logger   *zap.Logger
	cancelFn context.CancelFunc
	doneCh   chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	running  bool
}

// BroadcasterOption configures a RedisBroadcaster
type BroadcasterOption func(*RedisBroadcaster)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) BroadcasterOption {
	return func(b *RedisBroadcaster) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithOrigin tags published messages so an instance can skip its own
func WithOrigin(origin string) BroadcasterOption {
	return func(b *RedisBroadcaster) {
		b.origin = origin
	}
}

// WithBroadcastLogger sets the logger
func WithBroadcastLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *RedisBroadcaster) {
		b.logger = logger
	}
}

// NewRedisBroadcaster creates a broadcaster on a shared client.
// The caller keeps ownership of the client.
func NewRedisBroadcaster(client *redis.Client, opts ...BroadcasterOption) *RedisBroadcaster {
	b := &RedisBroadcaster{
		client:  client,
		channel: defaultBroadcastChannel,
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish announces evicted keys to every subscriber
func (b *RedisBroadcaster) Publish(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	data, err := json.Marshal(EvictionMessage{Keys: keys, Origin: b.origin, Timestamp: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to marshal eviction message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish eviction message: %w", err)
	}
	return nil
}

// Subscribe blocks, invoking callback for every eviction published by
// another origin, until ctx is cancelled or Close is called.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, callback func(EvictionMessage)) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	b.running = true
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelFn = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		b.doneOnce.Do(func() { close(b.doneCh) })
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	b.logger.Info("Subscribed to cache eviction channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Cache eviction channel closed")
				return nil
			}
			var m EvictionMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Error("Failed to unmarshal eviction message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if b.origin != "" && m.Origin == b.origin {
				continue
			}
			callback(m)
		}
	}
}

// Close stops a running subscription
func (b *RedisBroadcaster) Close() error {
	b.mu.Lock()
	cancelFn := b.cancelFn
	b.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-b.doneCh:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for eviction subscription to stop")
		}
	}
	return nil
}
