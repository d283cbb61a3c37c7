package limiters

import (
	"time"

	"github.com/MrEthical07/staysafe/accounts"
)

// Defaults for the account lockout guard.
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// Lockout counts failed verifications on the account record itself and
// locks the account once MaxAttempts is reached. It holds no state; callers
// persist the mutated account through accounts.Store.Update.
type Lockout struct {
	MaxAttempts int
	Duration    time.Duration
}

// NewLockout fills zero values with the defaults.
func NewLockout(maxAttempts int, duration time.Duration) Lockout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return Lockout{MaxAttempts: maxAttempts, Duration: duration}
}

// RecordFailure counts one failed attempt and reports whether this failure
// set a new lock. When a previous lock has already elapsed the counter
// restarts at 1: the failing attempt is the first of the new window.
func (l Lockout) RecordFailure(a *accounts.Account, now time.Time) bool {
	if a.LockUntil != nil && !now.Before(*a.LockUntil) {
		a.LoginAttempts = 1
		a.LockUntil = nil
		return false
	}

	a.LoginAttempts++
	if a.LoginAttempts >= l.MaxAttempts && a.LockUntil == nil {
		until := now.Add(l.Duration)
		a.LockUntil = &until
		return true
	}
	return false
}

// RecordSuccess clears the counter and any lock.
func (Lockout) RecordSuccess(a *accounts.Account) {
	a.LoginAttempts = 0
	a.LockUntil = nil
}

// IsLocked reports whether a is inside an active lock window.
func (Lockout) IsLocked(a *accounts.Account, now time.Time) bool {
	return a.IsLocked(now)
}
