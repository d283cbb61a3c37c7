package staysafe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
)

func TestVerifyMFAExpiredCodeIsKeptAndNotCounted(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, guestEmail, guestPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	code := f.code(t, guestEmail)
	before := f.account(t, guestEmail)

	f.clock.Advance(11 * time.Minute)
	if _, err := f.engine.VerifyMFA(ctx, guestEmail, code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	after := f.account(t, guestEmail)
	if after.OTPHash != before.OTPHash || after.LoginAttempts != before.LoginAttempts {
		t.Fatalf("expired submission must not mutate the account: %+v", after)
	}
	if f.metric(MetricMFAExpired) != 1 {
		t.Fatal("expected expired metric")
	}
}

func TestVerifyMFAUnknownEmailAndMalformedCode(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.engine.VerifyMFA(ctx, "nobody@example.com", "123456"); !errors.Is(err, ErrOTPNoChallenge) {
		t.Fatalf("expected ErrOTPNoChallenge, got %v", err)
	}
	if _, err := f.engine.VerifyMFA(ctx, guestEmail, "12ab56"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVerifyMFAMismatchesLockTheAccount(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, guestEmail, guestPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	code := f.code(t, guestEmail)
	for i := 1; i <= 5; i++ {
		if _, err := f.engine.VerifyMFA(ctx, guestEmail, wrongCode(code)); !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("attempt %d: expected ErrOTPMismatch, got %v", i, err)
		}
	}

	_, err := f.engine.VerifyMFA(ctx, guestEmail, code)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("correct code on a locked account must be refused, got %v", err)
	}
	if f.metric(MetricAccountLocked) != 1 {
		t.Fatal("expected one lock")
	}
}

func TestVerifyMFARateLimitedPerIPAndEmail(t *testing.T) {
	f := newEngineFixture(t, withRedis(t, nil))
	ctx := WithClientIP(context.Background(), "198.51.100.9")

	if _, err := f.engine.Signup(ctx, SignupInput{Email: guestEmail, Password: guestPassword, FullName: guestName}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	code := f.code(t, guestEmail)
	for i := 1; i <= 5; i++ {
		if _, err := f.engine.VerifyMFA(ctx, guestEmail, wrongCode(code)); !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("attempt %d: expected ErrOTPMismatch, got %v", i, err)
		}
	}
	if _, err := f.engine.VerifyMFA(ctx, guestEmail, code); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	f := newEngineFixture(t)
	first := f.signupVerified(t)
	ctx := context.Background()

	f.clock.Advance(time.Minute)
	second, err := f.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	if _, err := f.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("replayed refresh must fail, got %v", err)
	}
	if f.metric(MetricRefreshReplayRejected) != 1 {
		t.Fatal("expected replay metric")
	}
	if _, err := f.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("current refresh must still work: %v", err)
	}
	if _, err := f.engine.Refresh(ctx, ""); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("empty refresh must fail, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, second.AccessToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("an access token is not a refresh token, got %v", err)
	}
}

func TestNewLoginRevokesPreviousSession(t *testing.T) {
	f := newEngineFixture(t)
	first := f.signupVerified(t)

	f.clock.Advance(time.Minute)
	f.login(t, guestPassword)

	if _, err := f.engine.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("older session must be revoked, got %v", err)
	}
	if f.metric(MetricSessionRevoked) != 1 {
		t.Fatal("expected one revoked session")
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	f := newEngineFixture(t)
	sess := f.signupVerified(t)
	ctx := context.Background()

	if err := f.engine.Logout(ctx, sess.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if f.account(t, guestEmail).RefreshTokenHash != "" {
		t.Fatal("logout must clear the refresh binding")
	}
	if _, err := f.engine.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("refresh after logout must fail, got %v", err)
	}
	if err := f.engine.Logout(ctx, "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMissingTokensAreAudited(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Refresh(ctx, ""); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if err := f.engine.Logout(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	entries := f.drainAudit()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Action != auditlog.ActionTokenRefreshFailed || entries[0].Reason != string(reasonRefreshInvalid) {
		t.Fatalf("unexpected refresh entry %+v", entries[0])
	}
	if entries[1].Action != auditlog.ActionLogoutFailed || entries[1].Reason != string(reasonUnauthorized) {
		t.Fatalf("unexpected logout entry %+v", entries[1])
	}
}

func TestAuthenticate(t *testing.T) {
	f := newEngineFixture(t)
	sess := f.signupVerified(t)
	ctx := context.Background()

	p, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.Email != guestEmail || p.Role != "user" || p.TokenID == "" || p.AccountID != sess.Profile.ID {
		t.Fatalf("unexpected principal %+v", p)
	}
	if !p.ExpiresAt.Equal(f.clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", p.ExpiresAt)
	}

	if _, err := f.engine.Authenticate(ctx, "", AuthOptions{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.Authenticate(ctx, sess.RefreshToken, AuthOptions{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("a refresh token is not an access token, got %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthenticateRefusesLockedAccount(t *testing.T) {
	f := newEngineFixture(t)
	sess := f.signupVerified(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.engine.Login(ctx, guestEmail, "Wrong-Password-99!")
	}
	if _, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestAuthenticateFlagsExpiredPasswordOnce(t *testing.T) {
	f := newEngineFixture(t)
	sess := f.signupVerified(t)
	ctx := context.Background()

	old := f.clock.Now().AddDate(0, 0, -91)
	if _, err := f.store.Update(ctx, sess.Profile.ID, func(a *accounts.Account) error {
		a.LastPasswordChange = &old
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{}); !errors.Is(err, ErrPasswordExpired) {
			t.Fatalf("expected ErrPasswordExpired, got %v", err)
		}
	}
	if !f.account(t, guestEmail).PasswordExpired {
		t.Fatal("expired flag must be persisted")
	}
	if p, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{AllowExpiredPassword: true}); err != nil || p == nil {
		t.Fatalf("AllowExpiredPassword must admit the session: %v", err)
	}

	if err := f.engine.ChangePassword(ctx, sess.Profile.ID, guestPassword, "Ocean-View-Suite-42!"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := f.engine.Authenticate(ctx, sess.AccessToken, AuthOptions{}); err != nil {
		t.Fatalf("Authenticate after change failed: %v", err)
	}

	var expired int
	for _, e := range f.drainAudit() {
		if e.Action == auditlog.ActionPasswordExpired {
			expired++
		}
	}
	if expired != 1 {
		t.Fatalf("expected one password_expired entry, got %d", expired)
	}
}
