package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "notify:tenant:active:"

// RedisStatusCache shares tenant status across API replicas so a deactivation
// on one replica is seen by the others as soon as the key is deleted.
type RedisStatusCache struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// NewRedisStatusCache builds a cache backed by client. An empty keyPrefix uses the default.
func NewRedisStatusCache(client redis.UniversalClient, ttl time.Duration, keyPrefix string) *RedisStatusCache {
	if client == nil {
		panic("redis status cache requires client")
	}
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisStatusCache{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

func (c *RedisStatusCache) key(identifier string) string {
	return c.keyPrefix + identifier
}

func (c *RedisStatusCache) Get(ctx context.Context, identifier string) (bool, bool, error) {
	val, err := c.client.Get(ctx, c.key(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis get tenant status: %w", err)
	}
	return val == "1", true, nil
}

func (c *RedisStatusCache) Set(ctx context.Context, identifier string, active bool) error {
	if c.ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(identifier), encodeStatus(active), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set tenant status: %w", err)
	}
	return nil
}

// SetIfAbsent uses SET NX so a refill never replaces a value written by a status change.
func (c *RedisStatusCache) SetIfAbsent(ctx context.Context, identifier string, active bool) error {
	if c.ttl <= 0 {
		return nil
	}
	if err := c.client.SetNX(ctx, c.key(identifier), encodeStatus(active), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx tenant status: %w", err)
	}
	return nil
}

func encodeStatus(active bool) string {
	if active {
		return "1"
	}
	return "0"
}

func (c *RedisStatusCache) Delete(ctx context.Context, identifier string) error {
	if err := c.client.Del(ctx, c.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis delete tenant status: %w", err)
	}
	return nil
}

// ConnectRedis parses url, pings the server and returns a ready client.
func ConnectRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

var _ StatusCache = (*RedisStatusCache)(nil)
