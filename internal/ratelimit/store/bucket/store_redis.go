package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"imrich/internal/ratelimit/models"
)

// RedisBucketStore keeps one sorted set per key, scored by request time in
// microseconds, so every instance shares the same sliding window.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow trims the window, counts, and records the request when under limit.
// The count and the add are not one atomic step, so concurrent callers may
// overshoot limit by the number of racing requests.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	nowMicros := now.UnixMicro()
	cutoff := now.Add(-window).UnixMicro()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read rate limit window: %w", err)
	}

	resetAt := now.Add(window)
	if first := oldest.Val(); len(first) > 0 {
		resetAt = time.UnixMicro(int64(first[0].Score)).Add(window)
	}

	n := int(count.Val())
	if n >= limit {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}

	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMicros), Member: uuid.NewString()})
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record rate limit hit: %w", err)
	}
	if n == 0 {
		resetAt = now.Add(window)
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - n - 1,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
