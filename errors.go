package staysafe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/staysafe/password"
)

var (
	// ErrInvalidInput is returned when a request field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicy is returned when a password fails the strength rules.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a new password matches a recent one.
	ErrPasswordReuse = errors.New("password was used recently")
	// ErrPasswordExpired is returned when the password is past its maximum age.
	ErrPasswordExpired = errors.New("password expired")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while an account is inside a lock window.
	ErrAccountLocked = errors.New("account locked")
	// ErrOTPNoChallenge is returned when no one-time code is outstanding.
	ErrOTPNoChallenge = errors.New("no verification code pending")
	// ErrOTPExpired is returned for a code submitted after its expiry.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPMismatch is returned for a wrong code.
	ErrOTPMismatch = errors.New("invalid verification code")
	// ErrChallengeDelivery is returned when the code could not be sent.
	ErrChallengeDelivery = errors.New("verification code delivery failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTokenExpired      = errors.New("token expired")
	ErrRefreshInvalid    = errors.New("refresh token invalid")
	ErrForbidden         = errors.New("forbidden")
	ErrRateLimited       = errors.New("too many requests")
	// ErrBackendUnavailable wraps store and cache failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrEngineNotReady     = errors.New("engine not initialized")
)

// PolicyError lists every strength rule a password failed.
type PolicyError struct {
	Violations []password.Violation
}

func (e *PolicyError) Error() string {
	codes := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		codes[i] = v.Code
	}
	return fmt.Sprintf("%s: %s", ErrPasswordPolicy, strings.Join(codes, ","))
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy
}

// LockedError carries the time the lock window ends.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// InputError names the request field that failed validation.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Message)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(field, message string) error {
	return &InputError{Field: field, Message: message}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
