package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/societyops/internal/config"
	"go.uber.org/zap"
)

const keyWriteActor = "societyops:ratelimit:write:%s"

// WriteLimiter caps how fast one actor can mutate flats, assignments and
// payments. A nil or disabled limiter allows everything.
type WriteLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewWriteLimiter(cfg config.Config, log *zap.Logger) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return &WriteLimiter{}, nil
	}
	if !cfg.Redis.Enabled() {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	if log != nil {
		log.Named("ratelimit").Info("write rate limit enabled",
			zap.Float64("rate", limitCfg.WriteRate),
			zap.Int("burst", limitCfg.WriteBurst),
		)
	}
	return NewWriteLimiterWithBucket(NewTokenBucket(client), limitCfg.WriteRate, limitCfg.WriteBurst), nil
}

func NewWriteLimiterWithBucket(bucket *TokenBucket, rate float64, burst int) *WriteLimiter {
	return &WriteLimiter{
		enabled: bucket != nil,
		bucket:  bucket,
		rate:    rate,
		burst:   burst,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowWrite spends one token from the actor's bucket.
func (l *WriteLimiter) AllowWrite(ctx context.Context, actor string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteActor, actor), l.rate, l.burst)
}
