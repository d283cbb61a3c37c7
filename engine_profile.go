package staysafe

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
)

// Profile returns the public view of accountID with the phone decrypted.
func (e *Engine) Profile(ctx context.Context, accountID string) (*Profile, error) {
	if accountID == "" {
		return nil, ErrUnauthorized
	}
	a, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, e.backend("profile.find", err)
	}
	p := e.publicProfile(a)
	return &p, nil
}

// UpdateProfile changes the non-credential fields of accountID. Nil fields
// are left unchanged; an empty phone removes it.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (profile *Profile, err error) {
	tr := e.begin(ctx, auditlog.ActionProfileUpdate, auditlog.ActionProfileUpdateFailed, "")
	defer tr.finish(&err)

	if accountID == "" {
		return nil, ErrUnauthorized
	}

	var fullName, sealedPhone string
	if upd.FullName != nil {
		if err = validateFullName(*upd.FullName); err != nil {
			return nil, err
		}
		fullName = strings.TrimSpace(*upd.FullName)
		tr.note("fullName", "changed")
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if err = validatePhone(phone); err != nil {
			return nil, err
		}
		if sealedPhone, err = e.cipher.Encrypt(phone); err != nil {
			return nil, err
		}
		tr.note("phone", "changed")
	}

	now := e.now()
	updated, err := e.store.Update(ctx, accountID, func(cur *accounts.Account) error {
		if upd.FullName != nil {
			cur.FullName = fullName
		}
		if upd.Phone != nil {
			cur.Phone = sealedPhone
		}
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, e.backend("profile.update", err)
	}
	tr.subject(updated)

	e.metricInc(MetricProfileUpdate)
	p := e.publicProfile(updated)
	return &p, nil
}

// AuditTrail returns recorded audit entries, newest first. It requires an
// audit store ([Builder.WithAuditStore]); without one it returns
// ErrEngineNotReady. Entries still queued in the dispatcher are not yet
// visible.
func (e *Engine) AuditTrail(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	if e.auditStore == nil {
		return nil, ErrEngineNotReady
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, invalidInput("to", "must not be before from")
	}

	entries, err := e.auditStore.Find(ctx, auditlog.Query{
		AccountID: q.AccountID,
		From:      q.From,
		To:        q.To,
		Limit:     q.Limit,
	}.Normalize())
	if err != nil {
		return nil, e.backend("audit.find", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
