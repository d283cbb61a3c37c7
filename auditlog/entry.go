// Package auditlog defines the immutable security audit entry and the
// stores that retain entries for forensic queries.
package auditlog

import (
	"context"
	"errors"
	"time"
)

// Action tags an audited security event.
type Action string

const (
	ActionSignupSuccess          Action = "signup_success"
	ActionSignupFailed           Action = "signup_failed"
	ActionLoginOTPSent           Action = "login_otp_sent"
	ActionLoginFailed            Action = "login_failed"
	ActionMFAVerificationSuccess Action = "mfa_verification_success"
	ActionMFAVerificationFailed  Action = "mfa_verification_failed"
	ActionTokenRefreshSuccess    Action = "token_refresh_success"
	ActionTokenRefreshFailed     Action = "token_refresh_failed"
	ActionLogout                 Action = "logout"
	ActionLogoutFailed           Action = "logout_failed"
	ActionPasswordChangeSuccess  Action = "password_change_success"
	ActionPasswordChangeFailed   Action = "password_change_failed"
	ActionPasswordExpired        Action = "password_expired"
	ActionProfileUpdate          Action = "profile_update"
	ActionProfileUpdateFailed    Action = "profile_update_failed"
	ActionAdminProvisioned       Action = "admin_provisioned"
)

// Outcome is success or failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one audited event. Entries are never mutated after creation.
type Entry struct {
	ID        string            `json:"id"`
	Action    Action            `json:"action"`
	AccountID string            `json:"account_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Outcome   Outcome           `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Query selects entries for forensic review. Zero From/To leave that side
// of the range open. Results are newest first.
type Query struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

// DefaultLimit and MaxLimit bound Query.Limit.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("audit store unavailable")

// Store appends and queries entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Find(ctx context.Context, q Query) ([]Entry, error)
}

// Normalize clamps Limit into [1, MaxLimit].
func (q Query) Normalize() Query {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q
}

func (q Query) matches(e Entry) bool {
	if q.AccountID != "" && e.AccountID != q.AccountID {
		return false
	}
	if !q.From.IsZero() && e.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Timestamp.After(q.To) {
		return false
	}
	return true
}
