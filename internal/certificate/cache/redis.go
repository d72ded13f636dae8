// Package cache keeps verification provenance in Redis. Only issued
// certificates are cached; negative lookups always go to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"imrich/internal/certificate/models"
)

const (
	provenanceKeyPrefix = "imrich:provenance:"
	DefaultTTL          = 10 * time.Minute
)

// RedisCache is a read-through cache of models.Provenance keyed by serial.
// Provenance never changes after issuance, so entries need no invalidation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*RedisCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns (nil, nil) when the serial is not cached.
func (c *RedisCache) Get(ctx context.Context, serial models.Serial) (*models.Provenance, error) {
	raw, err := c.client.Get(ctx, provenanceKeyPrefix+serial.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provenance: %w", err)
	}
	var p models.Provenance
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode provenance: %w", err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, p models.Provenance) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode provenance: %w", err)
	}
	if err := c.client.Set(ctx, provenanceKeyPrefix+p.Serial.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set provenance: %w", err)
	}
	return nil
}

func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
