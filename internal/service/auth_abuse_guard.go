package service

import (
	"context"
	"time"
)

const (
	AuthAbuseScopeLogin  = "login"
	AuthAbuseScopeForgot = "forgot"
	AuthAbuseScopeVerify = "verify"
)

// AuthAbusePolicy shapes the cooldown curve applied after repeated
// authentication failures. Failures within FreeAttempts carry no
// penalty; beyond that the delay grows geometrically up to MaxDelay.
// Counters reset once ResetWindow passes without a failure.
type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p AuthAbusePolicy) withDefaults() AuthAbusePolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 30 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

// AuthAbuseGuard tracks failed authentication attempts per identity and
// per source IP, imposing a growing cooldown on each.
type AuthAbuseGuard interface {
	Check(ctx context.Context, scope, identity, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope, identity, ip string) (time.Duration, error)
	Reset(ctx context.Context, scope, identity, ip string) error
}

// NoopAuthAbuseGuard disables abuse tracking. Used by tests and by
// deployments without redis.
type NoopAuthAbuseGuard struct{}

func NewNoopAuthAbuseGuard() *NoopAuthAbuseGuard { return &NoopAuthAbuseGuard{} }

func (g *NoopAuthAbuseGuard) Check(context.Context, string, string, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) RegisterFailure(context.Context, string, string, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) Reset(context.Context, string, string, string) error {
	return nil
}
