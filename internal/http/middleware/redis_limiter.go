package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindowLimiter shares one counting window across replicas.
// Each request is a scored member in a sorted set keyed by client key,
// trimmed to the sustained window on every check.
type RedisSlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisSlidingWindowLimiter(client redis.UniversalClient, prefix string) *RedisSlidingWindowLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisSlidingWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	redisKey := l.prefix + ":" + key
	windowStart := now.Add(-policy.SustainedWindow)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	cardCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit window check: %w", err)
	}

	count := int(cardCmd.Val())
	if count >= policy.SustainedLimit {
		retryAfter := policy.SustainedWindow
		oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("rate limit oldest hit: %w", err)
		}
		if len(oldest) > 0 {
			expiresAt := time.UnixMilli(int64(oldest[0].Score)).Add(policy.SustainedWindow)
			retryAfter = expiresAt.Sub(now)
			if retryAfter <= 0 {
				retryAfter = time.Second
			}
		}
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter,
			Remaining:  0,
			ResetAt:    now.Add(retryAfter),
			Reason:     "window",
		}, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), count)
	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, redisKey, policy.SustainedWindow+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit record hit: %w", err)
	}

	remaining := policy.SustainedLimit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(policy.SustainedWindow),
	}, nil
}
