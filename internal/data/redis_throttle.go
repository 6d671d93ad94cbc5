package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stokehq/genrelay/internal/core"
)

// RedisThrottleCache implements core.ThrottleCache using Redis SET NX with a
// TTL. It throttles heartbeat emissions and suppresses duplicate callback
// processing; it is best effort and never load-bearing for correctness.
type RedisThrottleCache struct {
	client redis.UniversalClient
	prefix string
}

var _ core.ThrottleCache = (*RedisThrottleCache)(nil)

// NewRedisThrottleCache creates a new RedisThrottleCache with the given Redis client.
func NewRedisThrottleCache(client redis.UniversalClient, prefix string) *RedisThrottleCache {
	if prefix == "" {
		prefix = "genrelay:throttle"
	}
	return &RedisThrottleCache{client: client, prefix: prefix}
}

// Allow claims the key for ttl if it is currently unclaimed. Returns true
// when the claim succeeded (the caller may proceed).
func (c *RedisThrottleCache) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	ok, err := c.client.SetNX(ctx, c.prefix+":"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Forget releases a claimed key before its TTL expires.
func (c *RedisThrottleCache) Forget(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if err := c.client.Del(ctx, c.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// AlwaysAllow is a ThrottleCache that never throttles. Used when Redis is not
// configured.
type AlwaysAllow struct{}

var _ core.ThrottleCache = AlwaysAllow{}

// Allow always reports the key as unclaimed.
func (AlwaysAllow) Allow(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// Forget is a no-op; nothing is ever claimed.
func (AlwaysAllow) Forget(context.Context, string) error {
	return nil
}
