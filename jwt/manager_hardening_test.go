package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	accessSecret  = []byte("access-secret-access-secret-0123456789")
	refreshSecret = []byte("refresh-secret-refresh-secret-0123456789")
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		Issuer:        "staysafe",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseHS256(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)

	pair, err := m.Issue("acct-1", "guest@example.com", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, err := m.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if access.Subject != "acct-1" || access.Email != "guest@example.com" || access.Role != "user" || access.ID == "" {
		t.Fatalf("unexpected access claims %+v", access)
	}

	refresh, err := m.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if refresh.Subject != "acct-1" {
		t.Fatalf("unexpected refresh claims %+v", refresh)
	}
	if !pair.RefreshExpiresAt.Equal(clock.t.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected refresh expiry %v", pair.RefreshExpiresAt)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m := newHSManager(t, &fakeClock{t: time.Now()})
	pair, _ := m.Issue("acct-1", "guest@example.com", "user")

	if _, err := m.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access token must not parse as refresh, got %v", err)
	}
	if _, err := m.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("refresh token must not parse as access, got %v", err)
	}
}

func TestExpiredIsDistinguished(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newHSManager(t, clock)
	pair, _ := m.Issue("acct-1", "guest@example.com", "user")

	clock.t = clock.t.Add(16 * time.Minute)
	if _, err := m.ParseAccess(pair.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := m.ParseRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh should still be valid, got %v", err)
	}
}

func TestTamperedTokenIsInvalid(t *testing.T) {
	m := newHSManager(t, &fakeClock{t: time.Now()})
	pair, _ := m.Issue("acct-1", "guest@example.com", "user")

	parts := strings.Split(pair.AccessToken, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseAccess(strings.Join(parts, ".")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := m.ParseAccess("not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestRefreshTokensAreUniquePerIssue(t *testing.T) {
	m := newHSManager(t, &fakeClock{t: time.Now()})
	a, _ := m.Issue("acct-1", "guest@example.com", "user")
	b, _ := m.Issue("acct-1", "guest@example.com", "user")
	if a.RefreshToken == b.RefreshToken {
		t.Fatal("two issues in the same instant must differ")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	pair, err := m.Issue("acct-1", "guest@example.com", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c, err := m.ParseAccess(pair.AccessToken); err != nil || c.Role != "admin" {
		t.Fatalf("ed25519 roundtrip failed: %v", err)
	}

	claims := AccessClaims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(forged); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	base := Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256,
		AccessSecret: accessSecret, RefreshSecret: refreshSecret}

	cases := map[string]func(c *Config){
		"short secret":   func(c *Config) { c.AccessSecret = []byte("short") },
		"shared secret":  func(c *Config) { c.RefreshSecret = c.AccessSecret },
		"refresh <= ttl": func(c *Config) { c.RefreshTTL = c.AccessTTL },
		"bad method":     func(c *Config) { c.SigningMethod = "rs256" },
		"bad leeway":     func(c *Config) { c.Leeway = time.Hour },
		"ed25519 no key": func(c *Config) { c.SigningMethod = MethodEd25519 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}
