package staysafe

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/internal/flows"
	"github.com/MrEthical07/staysafe/internal/ids"
	"github.com/MrEthical07/staysafe/notify"
	"github.com/MrEthical07/staysafe/password"
)

// Signup registers a user account and sends its first one-time code. The
// account is not authenticated until [Engine.VerifyMFA] succeeds.
//
// Errors: *InputError, *PolicyError (all violations), ErrAccountExists,
// ErrRateLimited, ErrChallengeDelivery (the account exists and a later
// Login reissues the code), ErrBackendUnavailable.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (res *ChallengeResult, err error) {
	email := accounts.NormalizeEmail(in.Email)
	tr := e.begin(ctx, auditlog.ActionSignupSuccess, auditlog.ActionSignupFailed, email)
	defer tr.finish(&err)

	if err = e.admit("auth", e.gate.CheckAuth(ctx, clientIPFromContext(ctx))); err != nil {
		return nil, err
	}
	defer func() { e.countAuthFailure(ctx, err) }()

	if err = validateEmail(email); err != nil {
		return nil, err
	}
	if err = validateFullName(in.FullName); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(in.Phone)
	if err = validatePhone(phone); err != nil {
		return nil, err
	}
	if err = policyError(password.ValidateStrength(in.Password)); err != nil {
		e.metricInc(MetricSignupFailure)
		return nil, err
	}

	switch _, ferr := e.store.FindByEmail(ctx, email); {
	case ferr == nil:
		e.metricInc(MetricSignupDuplicate)
		return nil, ErrAccountExists
	case !errors.Is(ferr, accounts.ErrNotFound):
		return nil, e.backend("signup.find", ferr)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	sealedPhone, err := e.cipher.Encrypt(phone)
	if err != nil {
		return nil, err
	}

	now := e.now()
	a := &accounts.Account{
		ID:                 ids.NewAt(now),
		Email:              email,
		FullName:           strings.TrimSpace(in.FullName),
		Phone:              sealedPhone,
		Role:               accounts.RoleUser,
		PasswordHash:       hash,
		PasswordHistory:    []string{hash},
		LastPasswordChange: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	step, err := e.machine.Apply(a, flows.Event{Kind: flows.EventChallengeIssued}, now)
	if err != nil {
		return nil, err
	}

	if err = e.store.Create(ctx, a); err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			e.metricInc(MetricSignupDuplicate)
			return nil, ErrAccountExists
		}
		return nil, e.backend("signup.create", err)
	}
	tr.subject(a)
	e.metricInc(MetricSignupSuccess)

	if err = e.deliver(ctx, a, step.Code, notify.PurposeSignup); err != nil {
		return nil, err
	}

	return &ChallengeResult{Email: email, RequiresMFA: true, ExpiresAt: *a.OTPExpiry}, nil
}

// Login checks the password and, on a match, sends a one-time code. It
// never issues tokens.
//
// An unknown email and a wrong password both return ErrInvalidCredentials.
// A locked account returns *LockedError before the password is compared.
// A matching password does not reset the failure counter; only a completed
// MFA verification does.
func (e *Engine) Login(ctx context.Context, email, secret string) (res *ChallengeResult, err error) {
	email = accounts.NormalizeEmail(email)
	tr := e.begin(ctx, auditlog.ActionLoginOTPSent, auditlog.ActionLoginFailed, email)
	defer tr.finish(&err)

	if err = e.admit("auth", e.gate.CheckAuth(ctx, clientIPFromContext(ctx))); err != nil {
		return nil, err
	}
	defer func() { e.countAuthFailure(ctx, err) }()

	if err = validateEmail(email); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, invalidInput("password", "is required")
	}

	a, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			e.burnVerify(secret)
			e.metricInc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, e.backend("login.find", err)
	}
	tr.subject(a)

	now := e.now()
	if a.IsLocked(now) {
		e.metricInc(MetricLoginLocked)
		return nil, lockedError(a.LockUntil)
	}

	ok, verr := e.hasher.Verify(secret, a.PasswordHash)
	if verr != nil {
		e.logger.Warn("password not verified", zap.String("account_id", a.ID), zap.Error(verr))
	}
	event := flows.Event{Kind: flows.EventCredentialRejected}
	upgraded := ""
	if ok {
		event.Kind = flows.EventCredentialAccepted
		upgraded = e.upgradeHash(a, secret)
	}

	var step flows.Transition
	var outcome error
	var lockUntil = a.LockUntil
	updated, err := e.store.Update(ctx, a.ID, func(cur *accounts.Account) error {
		lockUntil = cur.LockUntil
		step, outcome = e.machine.Apply(cur, event, now)
		if !flows.Persist(outcome) {
			return outcome
		}
		if outcome == nil && upgraded != "" && cur.PasswordHash == a.PasswordHash {
			cur.PasswordHash = upgraded
		}
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, flows.ErrLocked):
			e.metricInc(MetricLoginLocked)
			return nil, lockedError(lockUntil)
		case errors.Is(err, accounts.ErrNotFound):
			return nil, ErrInvalidCredentials
		case outcome != nil && errors.Is(err, outcome):
			return nil, challengeError(err, lockUntil)
		}
		return nil, e.backend("login.update", err)
	}

	if outcome != nil {
		e.metricInc(MetricLoginFailure)
		tr.note("attempts", itoa(updated.LoginAttempts))
		if step.LockedNow {
			e.metricInc(MetricAccountLocked)
			tr.note("locked", "true")
		}
		return nil, challengeError(outcome, updated.LockUntil)
	}

	if upgraded != "" && updated.PasswordHash == upgraded {
		e.metricInc(MetricPasswordHashUpgraded)
	}
	e.metricInc(MetricLoginChallengeIssued)

	if err = e.deliver(ctx, updated, step.Code, notify.PurposeLogin); err != nil {
		return nil, err
	}

	return &ChallengeResult{Email: updated.Email, RequiresMFA: true, ExpiresAt: *updated.OTPExpiry}, nil
}

// ProvisionAdmin creates an admin account for operator bootstrap. It is
// idempotent: an existing admin with the same email is returned with
// created=false. An existing non-admin account returns ErrAccountExists.
// Admins are created without a pending challenge; their first Login sends
// one like any other account.
func (e *Engine) ProvisionAdmin(ctx context.Context, email, secret, fullName string) (profile *Profile, created bool, err error) {
	email = accounts.NormalizeEmail(email)
	tr := e.begin(ctx, auditlog.ActionAdminProvisioned, auditlog.ActionAdminProvisioned, email)
	defer tr.finish(&err)

	if err = validateEmail(email); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	if err = validateFullName(fullName); err != nil {
		return nil, false, err
	}

	existing, err := e.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		tr.subject(existing)
		if existing.Role != accounts.RoleAdmin {
			return nil, false, ErrAccountExists
		}
		tr.note("created", "false")
		p := toProfile(existing)
		return &p, false, nil
	case !errors.Is(err, accounts.ErrNotFound):
		return nil, false, e.backend("admin.find", err)
	}

	if err = policyError(password.ValidateStrength(secret)); err != nil {
		return nil, false, err
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, false, err
	}

	now := e.now()
	a := &accounts.Account{
		ID:                 ids.NewAt(now),
		Email:              email,
		FullName:           strings.TrimSpace(fullName),
		Role:               accounts.RoleAdmin,
		PasswordHash:       hash,
		PasswordHistory:    []string{hash},
		LastPasswordChange: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err = e.store.Create(ctx, a); err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return nil, false, ErrAccountExists
		}
		return nil, false, e.backend("admin.create", err)
	}
	tr.subject(a)
	tr.note("created", "true")

	p := toProfile(a)
	return &p, true, nil
}

// upgradeHash returns a fresh hash of secret when a's stored hash is legacy
// or weaker than configured, or "" when no upgrade is due.
func (e *Engine) upgradeHash(a *accounts.Account, secret string) string {
	if !e.config.Password.UpgradeOnLogin {
		return ""
	}
	need, err := e.hasher.NeedsUpgrade(a.PasswordHash)
	if err != nil || !need {
		return ""
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		e.logger.Warn("password hash upgrade failed", zap.String("account_id", a.ID), zap.Error(err))
		return ""
	}
	return hash
}

// burnVerify spends one hash comparison so an unknown email costs the same
// as a wrong password.
func (e *Engine) burnVerify(secret string) {
	if e.dummyHash == "" {
		return
	}
	_, _ = e.hasher.Verify(secret, e.dummyHash)
}
