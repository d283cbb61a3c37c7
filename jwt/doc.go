// Package jwt mints and verifies the short-lived access token and the
// longer-lived refresh token. Verification distinguishes an expired but
// otherwise valid token ([ErrExpired]) from every other failure
// ([ErrInvalid]).
package jwt
