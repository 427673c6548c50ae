package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

const defaultCacheTTL = 5 * time.Second

// InstanceCache is a read-through mirror of registry records keyed by
// username, sitting in front of Mongo on the hot proxy path. Entries expire
// after a short TTL and are invalidated on every registry mutation, so the
// worst-case liveness error is bounded by the TTL.
// Key format: instance:<username>
type InstanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInstanceCache creates an InstanceCache wrapping the given Redis client.
func NewInstanceCache(client *redis.Client, ttl time.Duration) *InstanceCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &InstanceCache{client: client, ttl: ttl}
}

// Get returns the cached record for username, or (nil, nil) on a miss.
func (c *InstanceCache) Get(ctx context.Context, username string) (*domain.Instance, error) {
	raw, err := c.client.Get(ctx, c.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("instance cache get: %w", err)
	}

	var inst domain.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("instance cache decode: %w", err)
	}
	return &inst, nil
}

// Set stores the record under its username (expires after the cache TTL).
func (c *InstanceCache) Set(ctx context.Context, inst *domain.Instance) error {
	raw, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("instance cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(inst.Username), raw, c.ttl).Err()
}

// Invalidate drops the cached record after a register/heartbeat/deregister.
func (c *InstanceCache) Invalidate(ctx context.Context, username string) error {
	return c.client.Del(ctx, c.key(username)).Err()
}

func (c *InstanceCache) key(username string) string {
	return "instance:" + username
}
