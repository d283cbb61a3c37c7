package accounts

import (
	"strings"
	"time"
)

// Role is fixed at creation. Signup only ever creates RoleUser.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// SecurityState is the account-level security state derived from the
// lockout and challenge fields.
type SecurityState uint8

const (
	// StateActive means the account is neither locked nor holding an
	// outstanding one-time-passcode challenge.
	StateActive SecurityState = iota
	// StateLocked means LockUntil is set and still in the future.
	StateLocked
	// StateAwaitingMFA means a challenge hash and expiry are stored.
	StateAwaitingMFA
)

func (s SecurityState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateLocked:
		return "locked"
	case StateAwaitingMFA:
		return "awaiting_mfa"
	default:
		return "unknown"
	}
}

// Account is the persisted credential record.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	// Phone holds field-cipher output, never plaintext.
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`

	PasswordHash       string     `json:"password_hash"`
	PasswordHistory    []string   `json:"password_history,omitempty"`
	LastPasswordChange *time.Time `json:"last_password_change,omitempty"`
	PasswordExpired    bool       `json:"password_expired"`

	LoginAttempts int        `json:"login_attempts"`
	LockUntil     *time.Time `json:"lock_until,omitempty"`

	OTPHash    string     `json:"otp_hash,omitempty"`
	OTPExpiry  *time.Time `json:"otp_expiry,omitempty"`
	MFAEnabled bool       `json:"mfa_enabled"`

	// RefreshTokenHash is the SHA-256 of the single live refresh token.
	RefreshTokenHash string `json:"refresh_token_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked reports whether the account is inside an active lock window.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && now.Before(*a.LockUntil)
}

// HasChallenge reports whether an OTP challenge is stored, expired or not.
func (a *Account) HasChallenge() bool {
	return a.OTPHash != "" && a.OTPExpiry != nil
}

// State derives the security state. Locked takes precedence over an
// outstanding challenge.
func (a *Account) State(now time.Time) SecurityState {
	switch {
	case a.IsLocked(now):
		return StateLocked
	case a.HasChallenge():
		return StateAwaitingMFA
	default:
		return StateActive
	}
}

// Clone returns a deep copy so callers can mutate without aliasing store
// memory.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.PasswordHistory != nil {
		out.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	}
	out.LastPasswordChange = cloneTime(a.LastPasswordChange)
	out.LockUntil = cloneTime(a.LockUntil)
	out.OTPExpiry = cloneTime(a.OTPExpiry)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
