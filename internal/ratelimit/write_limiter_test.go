package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/societyops/internal/config"
	"github.com/stretchr/testify/require"
)

func TestWriteLimiterDisabledAllowsEverything(t *testing.T) {
	limiter, err := NewWriteLimiter(config.Config{}, nil)
	require.NoError(t, err)
	require.False(t, limiter.Enabled())

	for i := 0; i < 100; i++ {
		res, err := limiter.AllowWrite(context.Background(), "secretary")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	var nilLimiter *WriteLimiter
	res, err := nilLimiter.AllowWrite(context.Background(), "secretary")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestNewWriteLimiterValidatesConfig(t *testing.T) {
	_, err := NewWriteLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1, WriteBurst: 1},
	}, nil)
	require.Error(t, err)

	_, err = NewWriteLimiter(config.Config{
		Redis:     config.RedisConfig{Addr: "localhost:6379"},
		RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 0, WriteBurst: 1},
	}, nil)
	require.Error(t, err)
}

func TestTokenBucketRejectsBadArguments(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	require.Error(t, err)
}

func TestDefaultBucketTTL(t *testing.T) {
	require.Equal(t, time.Second, defaultBucketTTL(0, 5))
	require.Equal(t, 8*time.Second, defaultBucketTTL(5, 20))
	require.Equal(t, time.Second, defaultBucketTTL(100, 1))
}

func TestCastHelpers(t *testing.T) {
	require.Equal(t, int64(3), castToInt(int64(3)))
	require.Equal(t, int64(2), castToInt(2.9))
	require.Equal(t, int64(0), castToInt("x"))
	require.Equal(t, 1.5, castToFloat("1.5"))
	require.Equal(t, 4.0, castToFloat(int64(4)))
	require.Equal(t, 0.0, castToFloat(nil))
}
