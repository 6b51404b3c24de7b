package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
	now    func() time.Time
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{
		client: client,
		prefix: prefix,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope, identity, ip string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	var worst time.Duration
	for _, key := range g.keysFor(scope, identity, ip) {
		cooldown, err := g.remainingCooldown(ctx, key)
		if err != nil {
			return 0, err
		}
		if cooldown > worst {
			worst = cooldown
		}
	}
	return worst, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope, identity, ip string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	now := g.now().UTC()
	var worst time.Duration
	for _, key := range g.keysFor(scope, identity, ip) {
		cooldown, err := g.registerFailureOnKey(ctx, key, now)
		if err != nil {
			return 0, err
		}
		if cooldown > worst {
			worst = cooldown
		}
	}
	return worst, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope, identity, ip string) error {
	if g.client == nil {
		return nil
	}
	keys := g.keysFor(scope, identity, ip)
	if len(keys) == 0 {
		return nil
	}
	return g.client.Del(ctx, keys...).Err()
}

// registerFailureScript bumps the failure counter and derives the new
// cooldown in one atomic step, so concurrent failures never collapse
// into a single recorded attempt. A counter older than the reset
// window starts a fresh series.
var registerFailureScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local free = tonumber(ARGV[3])
local base = tonumber(ARGV[4])
local mult = tonumber(ARGV[5])
local max = tonumber(ARGV[6])
local expire = tonumber(ARGV[7])

local last = tonumber(redis.call('HGET', key, 'last_failure_ms'))
local failures
if last and (now - last) > window then
    redis.call('HSET', key, 'failures', 1)
    failures = 1
else
    failures = redis.call('HINCRBY', key, 'failures', 1)
end

local cooldown = 0
if failures > free then
    cooldown = base
    local i = free + 1
    while i < failures and cooldown < max do
        cooldown = cooldown * mult
        i = i + 1
    end
    if cooldown > max then
        cooldown = max
    end
    cooldown = math.floor(cooldown)
end

redis.call('HSET', key, 'last_failure_ms', now, 'cooldown_until_ms', now + cooldown)
redis.call('PEXPIRE', key, expire)
return cooldown
`)

func (g *RedisAuthAbuseGuard) registerFailureOnKey(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	cooldownMs, err := registerFailureScript.Run(ctx, g.client, []string{key},
		now.UnixMilli(),
		g.policy.ResetWindow.Milliseconds(),
		g.policy.FreeAttempts,
		g.policy.BaseDelay.Milliseconds(),
		g.policy.Multiplier,
		g.policy.MaxDelay.Milliseconds(),
		(g.policy.ResetWindow + g.policy.MaxDelay).Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("register auth failure for %s: %w", key, err)
	}
	return time.Duration(cooldownMs) * time.Millisecond, nil
}

func (g *RedisAuthAbuseGuard) remainingCooldown(ctx context.Context, key string) (time.Duration, error) {
	state, err := g.client.HGetAll(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	raw, ok := state["cooldown_until_ms"]
	if !ok {
		return 0, nil
	}
	untilMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse abuse guard cooldown for %s: %w", key, err)
	}
	remaining := time.UnixMilli(untilMs).Sub(g.now().UTC())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (g *RedisAuthAbuseGuard) keysFor(scope, identity, ip string) []string {
	keys := make([]string, 0, 2)
	if id := normalizeAuthIdentity(identity); id != "" {
		keys = append(keys, g.stateKey(scope, "id", id))
	}
	if ip != "" {
		keys = append(keys, g.stateKey(scope, "ip", ip))
	}
	return keys
}

func (g *RedisAuthAbuseGuard) stateKey(scope, keyType, value string) string {
	return fmt.Sprintf("%s:%s:%s:%s", g.prefix, normalizeToken(scope), keyType, hashToken(value))
}
