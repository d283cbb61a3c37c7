package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
)

const csrfTokenSize = 32

// NewNumericCode returns a uniformly random integer in [lo, hi] rendered in
// decimal. With lo = 100000 and hi = 999999 every code has six digits and
// none starts with zero.
func NewNumericCode(lo, hi int64) (string, error) {
	if lo < 0 || hi <= lo {
		return "", errors.New("invalid code range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(lo+n.Int64(), 10), nil
}

// NewCSRFToken returns 32 random bytes, base64url encoded without padding.
func NewCSRFToken() (string, error) {
	var raw [csrfTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 of a bearer token. Only this digest is
// persisted for refresh tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualStrings compares two strings in constant time with respect to their
// contents.
func EqualStrings(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
