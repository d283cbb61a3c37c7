// Package fieldcrypt encrypts personal fields before they are stored.
//
// Values are sealed with AES-256-GCM under a key derived from the operator
// secret with HKDF-SHA256. The stored form is
//
//	v1.<base64url(nonce || ciphertext || tag)>
//
// Records written by the earlier deployment use the hex form
// iv:tag:ciphertext with a 16-byte IV and a key made by zero-padding the
// secret to 32 bytes. [AESGCM.Decrypt] still reads them.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	versionPrefix  = "v1."
	hkdfInfo       = "staysafe field encryption v1"
	legacyIVLength = 16
	keyLength      = 32
	minSecret      = 16
)

var (
	// ErrMalformed means a stored value is in neither known format.
	ErrMalformed = errors.New("malformed ciphertext")
	// ErrDecrypt means authentication failed, usually a wrong key.
	ErrDecrypt = errors.New("decryption failed")
)

// Cipher encrypts and decrypts single string fields. Empty input maps to
// empty output in both directions.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (string, error)
}

// AESGCM is the production Cipher.
type AESGCM struct {
	aead   cipher.AEAD
	legacy cipher.AEAD
}

// New derives the field key from secret.
func New(secret string) (*AESGCM, error) {
	if len(secret) < minSecret {
		return nil, fmt.Errorf("encryption key must be at least %d bytes", minSecret)
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	legacyBlock, err := aes.NewCipher(legacyKey(secret))
	if err != nil {
		return nil, err
	}
	legacy, err := cipher.NewGCMWithNonceSize(legacyBlock, legacyIVLength)
	if err != nil {
		return nil, err
	}

	return &AESGCM{aead: aead, legacy: legacy}, nil
}

func legacyKey(secret string) []byte {
	key := []byte(secret)
	if len(key) >= keyLength {
		return key[:keyLength]
	}
	return append(key, []byte(strings.Repeat("0", keyLength-len(key)))...)
}

func (c *AESGCM) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AESGCM) Decrypt(stored string) (string, error) {
	switch {
	case stored == "":
		return "", nil
	case strings.HasPrefix(stored, versionPrefix):
		raw, err := base64.RawURLEncoding.DecodeString(stored[len(versionPrefix):])
		if err != nil || len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
			return "", ErrMalformed
		}
		ns := c.aead.NonceSize()
		plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
		if err != nil {
			return "", ErrDecrypt
		}
		return string(plain), nil
	default:
		return c.decryptLegacy(stored)
	}
}

func (c *AESGCM) decryptLegacy(stored string) (string, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	iv, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	body, err3 := hex.DecodeString(parts[2])
	if err := errors.Join(err1, err2, err3); err != nil || len(iv) != legacyIVLength || len(tag) != c.legacy.Overhead() {
		return "", ErrMalformed
	}
	plain, err := c.legacy.Open(nil, iv, append(body, tag...), nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Plain is a pass-through Cipher for tests and deployments without PII
// encryption.
type Plain struct{}

func (Plain) Encrypt(plaintext string) (string, error) { return plaintext, nil }
func (Plain) Decrypt(stored string) (string, error)    { return stored, nil }
