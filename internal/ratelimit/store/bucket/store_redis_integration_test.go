//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"imrich/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisBucketStore
	now   time.Time
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = NewRedisBucketStore(s.redis.Client)
	s.now = time.Now()
	s.store.now = func() time.Time { return s.now }
}

func (s *RedisBucketStoreSuite) TestLimitAndSlide() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "test:redis", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
		s.now = s.now.Add(time.Millisecond)
	}

	result, err := s.store.Allow(ctx, "test:redis", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)

	s.now = s.now.Add(time.Minute)
	result, err = s.store.Allow(ctx, "test:redis", 3, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "test:reset", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "test:reset"))

	result, err := s.store.Allow(ctx, "test:reset", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
