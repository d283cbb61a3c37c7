package staysafe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/internal/ids"
)

// AuditReason is the machine-readable failure code stored on audit entries.
type AuditReason string

const (
	reasonInvalidInput       AuditReason = "invalid_input"
	reasonPasswordPolicy     AuditReason = "password_policy"
	reasonPasswordReuse      AuditReason = "password_reuse"
	reasonPasswordExpired    AuditReason = "password_expired"
	reasonDuplicateEmail     AuditReason = "duplicate_email"
	reasonInvalidCredentials AuditReason = "invalid_credentials"
	reasonAccountLocked      AuditReason = "account_locked"
	reasonOTPNoChallenge     AuditReason = "otp_no_challenge"
	reasonOTPExpired         AuditReason = "otp_expired"
	reasonOTPMismatch        AuditReason = "otp_mismatch"
	reasonDeliveryFailed     AuditReason = "delivery_failed"
	reasonRefreshInvalid     AuditReason = "refresh_invalid"
	reasonTokenExpired       AuditReason = "token_expired"
	reasonUnauthorized       AuditReason = "unauthorized"
	reasonForbidden          AuditReason = "forbidden"
	reasonRateLimited        AuditReason = "rate_limited"
	reasonUnavailable        AuditReason = "backend_unavailable"
	reasonInternal           AuditReason = "internal_error"
)

var errPanic = errors.New("operation panicked")

// transition collects what one engine operation did and emits exactly one
// audit entry when it finishes.
type transition struct {
	e         *Engine
	ctx       context.Context
	onSuccess auditlog.Action
	onFailure auditlog.Action
	accountID string
	email     string
	meta      map[string]string
	// quiet suppresses the entry unless the operation panics.
	quiet bool
}

func (e *Engine) begin(ctx context.Context, onSuccess, onFailure auditlog.Action, email string) *transition {
	return &transition{
		e:         e,
		ctx:       ctx,
		onSuccess: onSuccess,
		onFailure: onFailure,
		email:     email,
	}
}

func (t *transition) subject(a *accounts.Account) {
	if a == nil {
		return
	}
	t.accountID = a.ID
	t.email = a.Email
}

func (t *transition) note(key, value string) {
	if t.meta == nil {
		t.meta = make(map[string]string, 2)
	}
	t.meta[key] = value
}

// finish must be deferred directly. It records the outcome held in *errp,
// or the panic in flight, and re-panics after emitting.
func (t *transition) finish(errp *error) {
	r := recover()

	var err error
	if errp != nil {
		err = *errp
	}
	if r != nil {
		err = fmt.Errorf("%w: %v", errPanic, r)
		t.e.logger.Error("engine operation panicked",
			zap.String("action", string(t.onFailure)),
			zap.Any("panic", r),
		)
	}

	if !t.quiet || r != nil {
		t.e.emitAudit(t, err)
	}

	if r != nil {
		panic(r)
	}
}

func (e *Engine) emitAudit(t *transition, err error) {
	if e == nil || e.audit == nil {
		return
	}

	now := e.now()
	entry := auditlog.Entry{
		ID:        ids.NewAt(now),
		Action:    t.onSuccess,
		AccountID: t.accountID,
		Email:     t.email,
		IP:        clientIPFromContext(t.ctx),
		UserAgent: userAgentFromContext(t.ctx),
		Outcome:   auditlog.OutcomeSuccess,
		Metadata:  t.meta,
		Timestamp: now.UTC(),
	}
	if err != nil {
		entry.Action = t.onFailure
		entry.Outcome = auditlog.OutcomeFailure
		entry.Reason = string(auditReason(err))
	}

	e.audit.Emit(t.ctx, entry)
}

func auditReason(err error) AuditReason {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return reasonInvalidInput
	case errors.Is(err, ErrPasswordPolicy):
		return reasonPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return reasonPasswordReuse
	case errors.Is(err, ErrPasswordExpired):
		return reasonPasswordExpired
	case errors.Is(err, ErrAccountExists):
		return reasonDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return reasonInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return reasonAccountLocked
	case errors.Is(err, ErrOTPNoChallenge):
		return reasonOTPNoChallenge
	case errors.Is(err, ErrOTPExpired):
		return reasonOTPExpired
	case errors.Is(err, ErrOTPMismatch):
		return reasonOTPMismatch
	case errors.Is(err, ErrChallengeDelivery):
		return reasonDeliveryFailed
	case errors.Is(err, ErrRefreshInvalid):
		return reasonRefreshInvalid
	case errors.Is(err, ErrTokenExpired):
		return reasonTokenExpired
	case errors.Is(err, ErrUnauthorized):
		return reasonUnauthorized
	case errors.Is(err, ErrForbidden):
		return reasonForbidden
	case errors.Is(err, ErrRateLimited):
		return reasonRateLimited
	case errors.Is(err, ErrBackendUnavailable):
		return reasonUnavailable
	default:
		return reasonInternal
	}
}
