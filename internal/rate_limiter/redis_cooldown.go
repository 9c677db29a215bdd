package ratelimiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown shares cooldowns between server processes. A key exists
// for exactly one interval after an accepted write.
type RedisCooldown struct {
	client   redis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewRedisCooldown(client redis.UniversalClient, prefix string, interval time.Duration) *RedisCooldown {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "chat:cooldown"
	}
	return &RedisCooldown{client: client, prefix: prefix, interval: interval}
}

// redisKey is prefix:room:user.
func (c *RedisCooldown) redisKey(key Key) string {
	return c.prefix + ":" + key.String()
}

func (c *RedisCooldown) Allow(ctx context.Context, key Key) (bool, time.Duration, error) {
	if c.interval <= 0 {
		return true, 0, nil
	}

	k := c.redisKey(key)

	// The key can expire between SETNX and PTTL; one retry covers that.
	for range 2 {
		ok, err := c.client.SetNX(ctx, k, 1, c.interval).Result()
		if err != nil {
			return false, 0, fmt.Errorf("internal/ratelimiter: redis setnx: %w", err)
		}
		if ok {
			return true, 0, nil
		}

		ttl, err := c.client.PTTL(ctx, k).Result()
		if err != nil {
			return false, 0, fmt.Errorf("internal/ratelimiter: redis pttl: %w", err)
		}
		if ttl > 0 {
			return false, ttl, nil
		}
		if ttl == -1 {
			// Key without expiry, written by something else. Reclaim it.
			if err := c.client.PExpire(ctx, k, c.interval).Err(); err != nil {
				return false, 0, fmt.Errorf("internal/ratelimiter: redis pexpire: %w", err)
			}
			return false, c.interval, nil
		}
	}

	return false, c.interval, nil
}

// Close releases the underlying client.
func (c *RedisCooldown) Close() error {
	return c.client.Close()
}
