//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Coritp27/sysga-sub001/internal/otp/ratelimit"
	"github.com/Coritp27/sysga-sub001/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	limiter *ratelimit.RedisLimiter
}

func TestRedisLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.limiter = ratelimit.NewRedis(s.redis.Client)
}

func (s *RedisLimiterSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func (s *RedisLimiterSuite) TestAllowsUpToLimit() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := s.limiter.Allow(ctx, "CARD-100", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.limiter.Allow(ctx, "CARD-100", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *RedisLimiterSuite) TestKeysAreIndependent() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.limiter.Allow(ctx, "CARD-100", 3, time.Minute)
		s.Require().NoError(err)
	}

	result, err := s.limiter.Allow(ctx, "CARD-200", 3, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisLimiterSuite) TestDeniedCallDoesNotCount() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.limiter.Allow(ctx, "CARD-100", 3, time.Minute)
		s.Require().NoError(err)
	}

	// Hammering while denied must not extend the lockout.
	for i := 0; i < 5; i++ {
		result, err := s.limiter.Allow(ctx, "CARD-100", 3, time.Minute)
		s.Require().NoError(err)
		s.False(result.Allowed)
	}

	count, err := s.redis.Client.Get(ctx, "otp:issue:CARD-100").Int()
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *RedisLimiterSuite) TestWindowExpires() {
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := s.limiter.Allow(ctx, "CARD-100", 2, time.Second)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}

	result, err := s.limiter.Allow(ctx, "CARD-100", 2, time.Second)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.WithinDuration(time.Now().Add(time.Second), result.ResetAt, 900*time.Millisecond)

	time.Sleep(1500 * time.Millisecond)

	result, err = s.limiter.Allow(ctx, "CARD-100", 2, time.Second)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
