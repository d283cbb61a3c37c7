package staysafe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/internal/flows"
	"github.com/MrEthical07/staysafe/internal/rate"
	"github.com/MrEthical07/staysafe/password"
)

// ChangePassword replaces the password of accountID after re-verifying the
// current one.
//
// A wrong current password returns ErrInvalidCredentials and counts toward
// the lockout. The new password must satisfy the policy and must not match
// the current password or any of the last HistoryDepth passwords. Success
// clears PasswordExpired, so an expired password can be changed with the
// session that Authenticate refused. The refresh session is kept.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, next string) (err error) {
	tr := e.begin(ctx, auditlog.ActionPasswordChangeSuccess, auditlog.ActionPasswordChangeFailed, "")
	defer tr.finish(&err)

	if accountID == "" {
		return ErrUnauthorized
	}
	if err = e.admit("password", e.gate.CheckPassword(ctx, accountID)); err != nil {
		return err
	}
	defer func() { e.countPasswordFailure(ctx, accountID, err) }()

	if current == "" {
		return invalidInput("currentPassword", "is required")
	}
	if err = policyError(password.ValidateStrength(next)); err != nil {
		e.metricInc(MetricPasswordChangePolicy)
		return err
	}

	a, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrUnauthorized
		}
		return e.backend("password.find", err)
	}
	tr.subject(a)

	now := e.now()
	if a.IsLocked(now) {
		return lockedError(a.LockUntil)
	}

	ok, verr := e.hasher.Verify(current, a.PasswordHash)
	if verr != nil {
		e.logger.Warn("password not verified", zap.String("account_id", a.ID), zap.Error(verr))
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return e.rejectCurrent(ctx, tr, a.ID, now)
	}

	if e.reused(a, next) {
		e.metricInc(MetricPasswordChangeReuseRejected)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}

	depth := e.config.Policy.HistoryDepth
	_, err = e.store.Update(ctx, a.ID, func(cur *accounts.Account) error {
		if cur.PasswordHash != a.PasswordHash {
			return accounts.ErrConflict
		}
		history := cur.PasswordHistory
		if len(history) == 0 || history[len(history)-1] != cur.PasswordHash {
			history = password.AppendHistory(history, cur.PasswordHash, depth)
		}
		cur.PasswordHash = hash
		cur.PasswordHistory = password.AppendHistory(history, hash, depth)
		cur.LastPasswordChange = &now
		cur.PasswordExpired = false
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrUnauthorized
		}
		return e.backend("password.update", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

// rejectCurrent records a wrong current password as a counted failure.
func (e *Engine) rejectCurrent(ctx context.Context, tr *transition, id string, now time.Time) error {
	var (
		step      flows.Transition
		outcome   error
		lockUntil *time.Time
	)
	updated, err := e.store.Update(ctx, id, func(cur *accounts.Account) error {
		lockUntil = cur.LockUntil
		step, outcome = e.machine.Apply(cur, flows.Event{Kind: flows.EventCredentialRejected}, now)
		if !flows.Persist(outcome) {
			return outcome
		}
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, flows.ErrLocked) {
			return lockedError(lockUntil)
		}
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrUnauthorized
		}
		return e.backend("password.reject", err)
	}

	tr.note("attempts", itoa(updated.LoginAttempts))
	if step.LockedNow {
		e.metricInc(MetricAccountLocked)
		tr.note("locked", "true")
	}
	return ErrInvalidCredentials
}

// reused reports whether next matches the current password or one kept in
// history.
func (e *Engine) reused(a *accounts.Account, next string) bool {
	hashes := a.PasswordHistory
	found := false
	for _, h := range hashes {
		if h == a.PasswordHash {
			found = true
			break
		}
	}
	if !found && a.PasswordHash != "" {
		hashes = append(append([]string(nil), hashes...), a.PasswordHash)
	}

	reused, err := password.Reused(e.hasher, hashes, next)
	if err != nil {
		// A malformed history entry cannot match; the others were still
		// compared.
		e.logger.Warn("password history entry unreadable", zap.String("account_id", a.ID), zap.Error(err))
	}
	return reused
}

func (e *Engine) countPasswordFailure(ctx context.Context, accountID string, err error) {
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBackendUnavailable) {
		return
	}
	if gerr := e.gate.FailPassword(ctx, accountID); gerr != nil && !errors.Is(gerr, rate.ErrRateLimited) {
		e.logger.Warn("request gate unavailable", zap.String("scope", "password"), zap.Error(gerr))
	}
}

// PasswordStrength scores pw and lists every policy rule it breaks. It does
// not touch any account.
func (e *Engine) PasswordStrength(pw string) StrengthReport {
	res := password.ValidateStrength(pw)
	score := password.Strength(pw)
	violations := res.Violations
	if violations == nil {
		violations = []password.Violation{}
	}
	return StrengthReport{
		Valid:      res.Valid,
		Violations: violations,
		Score:      score.Value,
		Label:      string(score.Label),
	}
}
