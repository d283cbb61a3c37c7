package staysafe

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/fieldcrypt"
	internalaudit "github.com/MrEthical07/staysafe/internal/audit"
	"github.com/MrEthical07/staysafe/internal/challenge"
	"github.com/MrEthical07/staysafe/internal/flows"
	"github.com/MrEthical07/staysafe/internal/limiters"
	"github.com/MrEthical07/staysafe/internal/rate"
	"github.com/MrEthical07/staysafe/jwt"
	"github.com/MrEthical07/staysafe/notify"
	"github.com/MrEthical07/staysafe/password"
	"github.com/MrEthical07/staysafe/permission"
)

// Engine runs every authentication and account-security operation.
//
// Engine methods are safe for concurrent use after [Builder.Build]. Each
// operation reads and writes one account through a single atomic store
// update and emits exactly one audit entry.
type Engine struct {
	config     Config
	store      accounts.Store
	hasher     *password.Hasher
	tokens     *jwt.Manager
	issuer     *flows.Issuer
	machine    flows.Machine
	gate       *limiters.RequestGate
	audit      *internalaudit.Dispatcher
	auditStore auditlog.Store
	sender     notify.Sender
	cipher     fieldcrypt.Cipher
	roles      *permission.RoleManager
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time

	// dummyHash is verified against when the email is unknown.
	dummyHash string
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

const (
	maxEmailLength    = 254
	maxFullNameLength = 100
)

// Close drains the audit dispatcher. Entries emitted after Close are
// discarded.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit entries were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Roles returns the role manager used to build principals.
func (e *Engine) Roles() *permission.RoleManager {
	return e.roles
}

// Cookies returns the cookie settings for the HTTP layer.
func (e *Engine) Cookies() CookieConfig {
	return e.config.Cookie
}

// AccessTTL and RefreshTTL expose token lifetimes for cookie Max-Age.
func (e *Engine) AccessTTL() time.Duration  { return e.tokens.AccessTTL() }
func (e *Engine) RefreshTTL() time.Duration { return e.tokens.RefreshTTL() }

// Ping checks the account store.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// backend maps a store failure onto the engine taxonomy and logs it.
func (e *Engine) backend(op string, err error) error {
	if err == nil {
		return nil
	}
	e.logger.Error("account store failure", zap.String("op", op), zap.Error(err))
	return unavailable(err)
}

// admit translates a request-gate result. The gate fails open when Redis
// is unreachable.
func (e *Engine) admit(scope string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		return ErrRateLimited
	default:
		e.logger.Warn("request gate unavailable", zap.String("scope", scope), zap.Error(err))
		return nil
	}
}

// countAuthFailure charges a failed signup or login to the caller's IP.
// Rate-limit rejections and backend failures are not charged.
func (e *Engine) countAuthFailure(ctx context.Context, err error) {
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBackendUnavailable) {
		return
	}
	if gerr := e.gate.FailAuth(ctx, clientIPFromContext(ctx)); gerr != nil && !errors.Is(gerr, rate.ErrRateLimited) {
		e.logger.Warn("request gate unavailable", zap.String("scope", "auth"), zap.Error(gerr))
	}
}

// deliver hands a freshly issued code to the sender.
func (e *Engine) deliver(ctx context.Context, a *accounts.Account, code string, purpose notify.Purpose) error {
	err := e.sender.SendCode(ctx, notify.Message{
		To:        a.Email,
		Name:      a.FullName,
		Code:      code,
		Purpose:   purpose,
		ExpiresIn: e.config.OTP.TTL,
	})
	if err != nil {
		e.metricInc(MetricChallengeDeliveryFailure)
		e.logger.Warn("verification code not delivered",
			zap.String("account_id", a.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return ErrChallengeDelivery
	}
	return nil
}

// challengeError maps a state-machine outcome onto the public taxonomy.
// lockUntil is the account's lock end when the machine refused a locked
// account.
func challengeError(err error, lockUntil *time.Time) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flows.ErrLocked):
		return lockedError(lockUntil)
	case errors.Is(err, flows.ErrCredentialRejected):
		return ErrInvalidCredentials
	case errors.Is(err, challenge.ErrNoChallenge):
		return ErrOTPNoChallenge
	case errors.Is(err, challenge.ErrExpired):
		return ErrOTPExpired
	case errors.Is(err, challenge.ErrMismatch):
		return ErrOTPMismatch
	default:
		return err
	}
}

func lockedError(until *time.Time) error {
	le := &LockedError{}
	if until != nil {
		le.Until = *until
	}
	return le
}

func (e *Engine) decryptPhone(a *accounts.Account) string {
	phone, err := e.cipher.Decrypt(a.Phone)
	if err != nil {
		e.logger.Warn("phone not decrypted", zap.String("account_id", a.ID), zap.Error(err))
		return ""
	}
	return phone
}

func validateEmail(email string) error {
	if email == "" {
		return invalidInput("email", "is required")
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return invalidInput("email", "must be a valid email address")
	}
	return nil
}

func validateFullName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return invalidInput("fullName", "is required")
	}
	if n > maxFullNameLength {
		return invalidInput("fullName", "must be at most 100 characters")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone != "" && !phonePattern.MatchString(phone) {
		return invalidInput("phone", "must be a valid phone number")
	}
	return nil
}

func validateOTP(code string) error {
	if !otpPattern.MatchString(code) {
		return invalidInput("otp", "must be 6 digits")
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func policyError(res password.Result) error {
	if res.Valid {
		return nil
	}
	return &PolicyError{Violations: res.Violations}
}
