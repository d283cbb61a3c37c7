package flows

import (
	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/internal"
)

// BindRefresh makes token the account's only live refresh token. Any token
// bound earlier is revoked by this call; revoked reports whether there was
// one. Only the SHA-256 digest is stored.
//
// Supporting several sessions per account means replacing this rule with a
// set of digests; nothing else in the package assumes a single session.
func BindRefresh(a *accounts.Account, token string) (revoked bool) {
	revoked = a.RefreshTokenHash != ""
	a.RefreshTokenHash = internal.HashToken(token)
	return revoked
}

// MatchRefresh reports whether token is the live refresh token for a.
func MatchRefresh(a *accounts.Account, token string) bool {
	if a.RefreshTokenHash == "" || token == "" {
		return false
	}
	return internal.EqualStrings(a.RefreshTokenHash, internal.HashToken(token))
}

// RevokeRefresh clears the live refresh token and reports whether one was
// bound.
func RevokeRefresh(a *accounts.Account) bool {
	had := a.RefreshTokenHash != ""
	a.RefreshTokenHash = ""
	return had
}
