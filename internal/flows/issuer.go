package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/jwt"
)

// ErrRefreshSuperseded is returned by Rotate for a well-signed refresh token
// that is no longer bound to its account: replayed, rotated or revoked. It
// matches jwt.ErrInvalid.
var ErrRefreshSuperseded = fmt.Errorf("%w: refresh token superseded", jwt.ErrInvalid)

// TokenManager is the subset of *jwt.Manager the issuer needs.
type TokenManager interface {
	Issue(subject, email, role string) (*jwt.Pair, error)
	ParseAccess(token string) (*jwt.AccessClaims, error)
	ParseRefresh(token string) (*jwt.RefreshClaims, error)
}

// Issuer mints, verifies, rotates and revokes session tokens.
type Issuer struct {
	Tokens TokenManager
	Store  accounts.Store
	Now    func() time.Time
}

// Issued is the result of minting a pair.
type Issued struct {
	Pair    *jwt.Pair
	Account *accounts.Account
	// Revoked is set when a previously bound refresh token was replaced.
	Revoked bool
}

// Mint creates a pair for a and binds its refresh token. It only mutates a;
// callers run it inside a store update.
func (i *Issuer) Mint(a *accounts.Account) (*jwt.Pair, bool, error) {
	pair, err := i.Tokens.Issue(a.ID, a.Email, string(a.Role))
	if err != nil {
		return nil, false, err
	}
	revoked := BindRefresh(a, pair.RefreshToken)
	a.UpdatedAt = i.now()
	return pair, revoked, nil
}

// Issue mints and persists a pair for the account with id.
func (i *Issuer) Issue(ctx context.Context, id string) (*Issued, error) {
	var out Issued
	updated, err := i.Store.Update(ctx, id, func(a *accounts.Account) error {
		pair, revoked, err := i.Mint(a)
		if err != nil {
			return err
		}
		out.Pair, out.Revoked = pair, revoked
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Account = updated
	return &out, nil
}

// VerifyAccess verifies an access token and resolves its account. Errors
// are jwt.ErrExpired, jwt.ErrInvalid, or a wrapped store failure. A token
// whose account no longer exists is invalid.
func (i *Issuer) VerifyAccess(ctx context.Context, token string) (*accounts.Account, *jwt.AccessClaims, error) {
	claims, err := i.Tokens.ParseAccess(token)
	if err != nil {
		return nil, nil, err
	}
	a, err := i.Store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, nil, jwt.ErrInvalid
		}
		return nil, nil, err
	}
	return a, claims, nil
}

// Rotate exchanges a live refresh token for a new pair. The presented token
// must be the one currently bound; a superseded or revoked token is invalid
// even when its signature and expiry still check out.
func (i *Issuer) Rotate(ctx context.Context, refreshToken string) (*Issued, error) {
	claims, err := i.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	var out Issued
	updated, err := i.Store.Update(ctx, claims.Subject, func(a *accounts.Account) error {
		if !MatchRefresh(a, refreshToken) {
			return ErrRefreshSuperseded
		}
		pair, revoked, err := i.Mint(a)
		if err != nil {
			return err
		}
		out.Pair, out.Revoked = pair, revoked
		return nil
	})
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, jwt.ErrInvalid
		}
		return nil, err
	}
	out.Account = updated
	return &out, nil
}

// Revoke clears the bound refresh token for id.
func (i *Issuer) Revoke(ctx context.Context, id string) (*accounts.Account, error) {
	return i.Store.Update(ctx, id, func(a *accounts.Account) error {
		RevokeRefresh(a)
		a.UpdatedAt = i.now()
		return nil
	})
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
