package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces Argon2id hashes and still verifies bcrypt hashes written by
// earlier deployments. Any bcrypt hash reports NeedsUpgrade so the caller can
// re-hash it after the next successful password check.
type Hasher struct {
	argon *Argon2
}

// NewHasher builds a Hasher around the given Argon2id parameters.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a}, nil
}

// Hash always produces an Argon2id PHC string.
func (h *Hasher) Hash(secret string) (string, error) {
	return h.argon.Hash(secret)
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	switch {
	case isArgon2(encoded):
		return h.argon.Verify(secret, encoded)
	case isBcrypt(encoded):
		if len(secret) > maxInputBytes {
			return false, ErrInputTooLong
		}
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, ErrMalformedHash
		}
		return true, nil
	default:
		return false, ErrMalformedHash
	}
}

// NeedsUpgrade is true for bcrypt hashes and for Argon2id hashes with weaker
// parameters than configured.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encoded)
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
