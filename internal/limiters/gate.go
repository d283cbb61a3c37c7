package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/staysafe/internal/rate"
)

// GateConfig holds the request-gate budgets.
type GateConfig struct {
	// Auth bounds failed signup/login attempts per client IP. Successful
	// requests do not count.
	Auth rate.Policy
	// MFA bounds OTP submissions per client IP and email.
	MFA rate.Policy
	// Password bounds failed password changes per account.
	Password rate.Policy
}

// DefaultGateConfig returns the production budgets.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Auth:     rate.Policy{Name: "auth", Max: 50, Window: 15 * time.Minute},
		MFA:      rate.Policy{Name: "mfa", Max: 5, Window: 15 * time.Minute},
		Password: rate.Policy{Name: "password", Max: 3, Window: time.Hour},
	}
}

// RequestGate applies the request budgets ahead of credential checks.
// A nil *RequestGate allows everything.
type RequestGate struct {
	limiter *rate.Limiter
	config  GateConfig
}

// NewRequestGate builds a gate over limiter.
func NewRequestGate(limiter *rate.Limiter, cfg GateConfig) *RequestGate {
	return &RequestGate{limiter: limiter, config: cfg}
}

// CheckAuth rejects when ip has spent its failure budget.
func (g *RequestGate) CheckAuth(ctx context.Context, ip string) error {
	if g == nil || ip == "" {
		return nil
	}
	return g.limiter.Check(ctx, g.config.Auth, ip)
}

// FailAuth counts one failed signup or login from ip.
func (g *RequestGate) FailAuth(ctx context.Context, ip string) error {
	if g == nil || ip == "" {
		return nil
	}
	return g.limiter.Hit(ctx, g.config.Auth, ip)
}

// EnforceMFA counts one OTP submission and rejects once the budget is
// exceeded.
func (g *RequestGate) EnforceMFA(ctx context.Context, ip, email string) error {
	if g == nil {
		return nil
	}
	return g.limiter.Hit(ctx, g.config.MFA, ip+"|"+email)
}

// CheckPassword rejects when accountID has spent its failed-change budget.
func (g *RequestGate) CheckPassword(ctx context.Context, accountID string) error {
	if g == nil {
		return nil
	}
	return g.limiter.Check(ctx, g.config.Password, accountID)
}

// FailPassword counts one failed password change.
func (g *RequestGate) FailPassword(ctx context.Context, accountID string) error {
	if g == nil {
		return nil
	}
	return g.limiter.Hit(ctx, g.config.Password, accountID)
}
