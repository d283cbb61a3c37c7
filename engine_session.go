package staysafe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/internal/challenge"
	"github.com/MrEthical07/staysafe/internal/flows"
	"github.com/MrEthical07/staysafe/jwt"
	"github.com/MrEthical07/staysafe/password"
)

// VerifyMFA completes signup or login by checking the pending one-time code.
// On success the challenge is consumed, the failure counter is reset and a
// new token pair is bound to the account, revoking any previous refresh
// token.
//
// A wrong code counts toward the lockout. An expired code is kept on the
// account and is not counted; an unknown email reports ErrOTPNoChallenge.
func (e *Engine) VerifyMFA(ctx context.Context, email, code string) (sess *Session, err error) {
	email = accounts.NormalizeEmail(email)
	tr := e.begin(ctx, auditlog.ActionMFAVerificationSuccess, auditlog.ActionMFAVerificationFailed, email)
	defer tr.finish(&err)

	if err = validateEmail(email); err != nil {
		return nil, err
	}
	if err = validateOTP(code); err != nil {
		return nil, err
	}
	if err = e.admit("mfa", e.gate.EnforceMFA(ctx, clientIPFromContext(ctx), email)); err != nil {
		return nil, err
	}

	a, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			e.metricInc(MetricMFAFailure)
			return nil, ErrOTPNoChallenge
		}
		return nil, e.backend("mfa.find", err)
	}
	tr.subject(a)

	now := e.now()
	var (
		step      flows.Transition
		outcome   error
		pair      *jwt.Pair
		revoked   bool
		lockUntil = a.LockUntil
	)
	updated, err := e.store.Update(ctx, a.ID, func(cur *accounts.Account) error {
		lockUntil = cur.LockUntil
		step, outcome = e.machine.Apply(cur, flows.Event{Kind: flows.EventChallengeSubmitted, Code: code}, now)
		if !flows.Persist(outcome) {
			return outcome
		}
		cur.UpdatedAt = now
		if outcome != nil {
			return nil
		}
		var merr error
		pair, revoked, merr = e.issuer.Mint(cur)
		return merr
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrNotFound):
			return nil, ErrOTPNoChallenge
		case outcome != nil && errors.Is(err, outcome):
			e.countMFAFailure(outcome)
			return nil, challengeError(outcome, lockUntil)
		}
		return nil, e.backend("mfa.update", err)
	}

	if outcome != nil {
		e.countMFAFailure(outcome)
		tr.note("attempts", itoa(updated.LoginAttempts))
		if step.LockedNow {
			e.metricInc(MetricAccountLocked)
			tr.note("locked", "true")
		}
		return nil, challengeError(outcome, updated.LockUntil)
	}

	e.metricInc(MetricMFASuccess)
	e.metricInc(MetricSessionCreated)
	if revoked {
		e.metricInc(MetricSessionRevoked)
		tr.note("previous_session_revoked", "true")
	}

	return e.session(pair, updated), nil
}

func (e *Engine) countMFAFailure(outcome error) {
	if errors.Is(outcome, challenge.ErrExpired) {
		e.metricInc(MetricMFAExpired)
		return
	}
	e.metricInc(MetricMFAFailure)
}

// Refresh rotates the session bound to refreshToken. The presented token
// stops working: presenting it again returns ErrRefreshInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (sess *Session, err error) {
	tr := e.begin(ctx, auditlog.ActionTokenRefreshSuccess, auditlog.ActionTokenRefreshFailed, "")
	defer tr.finish(&err)

	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	issued, err := e.issuer.Rotate(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, flows.ErrRefreshSuperseded):
			e.metricInc(MetricRefreshReplayRejected)
			return nil, ErrRefreshInvalid
		case errors.Is(err, jwt.ErrExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrInvalid):
			return nil, ErrRefreshInvalid
		}
		return nil, e.backend("refresh.rotate", err)
	}
	tr.subject(issued.Account)

	e.metricInc(MetricRefreshSuccess)
	return e.session(issued.Pair, issued.Account), nil
}

// Logout revokes the refresh token of the account behind accessToken. The
// access token itself stays valid until it expires.
func (e *Engine) Logout(ctx context.Context, accessToken string) (err error) {
	tr := e.begin(ctx, auditlog.ActionLogout, auditlog.ActionLogoutFailed, "")
	defer tr.finish(&err)

	if accessToken == "" {
		return ErrUnauthorized
	}
	a, _, err := e.issuer.VerifyAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) || errors.Is(err, jwt.ErrInvalid) {
			return ErrUnauthorized
		}
		return e.backend("logout.find", err)
	}
	tr.subject(a)

	had := a.RefreshTokenHash != ""
	if _, err = e.issuer.Revoke(ctx, a.ID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrUnauthorized
		}
		return e.backend("logout.revoke", err)
	}

	e.metricInc(MetricLogout)
	if had {
		e.metricInc(MetricSessionRevoked)
	}
	return nil
}

// Authenticate resolves an access token into a [Principal]. It backs every
// guarded route.
//
// A locked account returns *LockedError. When the password is older than
// the configured expiry the account is flagged PasswordExpired (written
// once) and ErrPasswordExpired is returned, unless opts.AllowExpiredPassword
// is set. Only that first flagging is audited.
func (e *Engine) Authenticate(ctx context.Context, accessToken string, opts AuthOptions) (p *Principal, err error) {
	tr := e.begin(ctx, auditlog.ActionPasswordExpired, auditlog.ActionPasswordExpired, "")
	tr.quiet = true
	defer tr.finish(&err)

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
		if err != nil {
			e.metricInc(MetricAuthenticateFailure)
		}
	}()

	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	a, claims, err := e.issuer.VerifyAccess(ctx, accessToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrInvalid):
			return nil, ErrUnauthorized
		}
		return nil, e.backend("authenticate.find", err)
	}
	tr.subject(a)

	now := e.now()
	if a.IsLocked(now) {
		return nil, lockedError(a.LockUntil)
	}

	expired := a.PasswordExpired
	if !expired && password.IsExpired(a.LastPasswordChange, e.config.Policy.ExpiryDays, now) {
		expired = true
		e.flagExpired(ctx, a, now)
		tr.quiet = false
	}
	if expired && !opts.AllowExpiredPassword {
		return nil, ErrPasswordExpired
	}

	mask, ok := e.roles.Mask(string(a.Role))
	if !ok {
		e.logger.Warn("account role not registered", zap.String("account_id", a.ID), zap.String("role", string(a.Role)))
		return nil, ErrForbidden
	}

	p = &Principal{
		AccountID:   a.ID,
		Email:       a.Email,
		Role:        string(a.Role),
		Permissions: mask,
		TokenID:     claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// flagExpired persists PasswordExpired. A failed write is logged and the
// request is still refused.
func (e *Engine) flagExpired(ctx context.Context, a *accounts.Account, now time.Time) {
	e.metricInc(MetricPasswordExpired)
	_, err := e.store.Update(ctx, a.ID, func(cur *accounts.Account) error {
		cur.PasswordExpired = true
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.logger.Warn("password expiry not persisted", zap.String("account_id", a.ID), zap.Error(err))
	}
}

func (e *Engine) session(pair *jwt.Pair, a *accounts.Account) *Session {
	return &Session{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Profile:          e.publicProfile(a),
	}
}

// publicProfile strips credential fields and decrypts the phone number.
func (e *Engine) publicProfile(a *accounts.Account) Profile {
	p := toProfile(a)
	p.Phone = e.decryptPhone(a)
	return p
}
