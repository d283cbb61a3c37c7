// Package challenge issues and verifies the six-digit one-time passcodes
// used for MFA on every signup and login.
//
// Only a bcrypt hash of the code and its expiry are stored on the account.
// The plaintext is returned once from Issue and must go straight to the
// delivery channel.
package challenge

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/internal"
)

const (
	DefaultTTL  = 10 * time.Minute
	DefaultCost = 10

	codeMin = 100000
	codeMax = 999999
)

var (
	// ErrNoChallenge means no hash/expiry pair is stored.
	ErrNoChallenge = errors.New("no outstanding challenge")
	// ErrExpired means the stored challenge is past its expiry.
	ErrExpired = errors.New("challenge expired")
	// ErrMismatch means the submitted code does not match.
	ErrMismatch = errors.New("challenge code mismatch")
)

// Manager issues and verifies challenges on account records. It holds no
// per-account state.
type Manager struct {
	ttl  time.Duration
	cost int
}

// NewManager returns a Manager. Zero values select DefaultTTL and
// DefaultCost.
func NewManager(ttl time.Duration, cost int) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cost == 0 {
		cost = DefaultCost
	}
	return &Manager{ttl: ttl, cost: cost}
}

// Issue stores a fresh challenge on a, replacing any prior one, and returns
// the plaintext code.
func (m *Manager) Issue(a *accounts.Account, now time.Time) (string, error) {
	code, err := internal.NewNumericCode(codeMin, codeMax)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.cost)
	if err != nil {
		return "", err
	}
	expiry := now.Add(m.ttl)
	a.OTPHash = string(hash)
	a.OTPExpiry = &expiry
	return code, nil
}

// Verify checks code against the stored challenge. An expired challenge is
// left in place. On success the challenge is cleared and MFA is marked as
// enabled. Lockout accounting is the caller's job.
func (m *Manager) Verify(a *accounts.Account, code string, now time.Time) error {
	if !a.HasChallenge() {
		return ErrNoChallenge
	}
	if now.After(*a.OTPExpiry) {
		return ErrExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.OTPHash), []byte(code)); err != nil {
		return ErrMismatch
	}
	Clear(a)
	a.MFAEnabled = true
	return nil
}

// Clear removes any stored challenge.
func Clear(a *accounts.Account) {
	a.OTPHash = ""
	a.OTPExpiry = nil
}
