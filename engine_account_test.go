package staysafe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/notify"
	"github.com/MrEthical07/staysafe/permission"
)

func TestSignupRejectsWeakPasswordWithAllViolations(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Signup(context.Background(), SignupInput{Email: guestEmail, Password: "short", FullName: guestName})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	var pe *PolicyError
	if !errors.As(err, &pe) || len(pe.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %+v", pe)
	}
	if f.store.Len() != 0 {
		t.Fatal("no account may be created on policy failure")
	}
	if f.sender.Sent() != 0 {
		t.Fatal("no code may be sent on policy failure")
	}
}

func TestSignupValidatesInput(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	cases := []SignupInput{
		{Email: "not-an-email", Password: guestPassword, FullName: guestName},
		{Email: guestEmail, Password: guestPassword, FullName: "   "},
		{Email: guestEmail, Password: guestPassword, FullName: strings.Repeat("n", 101)},
		{Email: guestEmail, Password: guestPassword, FullName: guestName, Phone: "012"},
	}
	for _, in := range cases {
		if _, err := f.engine.Signup(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestSignupSingleLetterNameAwaitsCode(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Str0ng!Passw0rd", FullName: "A"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if !res.RequiresMFA {
		t.Fatal("expected signup to require MFA")
	}
	a := f.account(t, "a@x.com")
	if got := a.State(f.clock.Now()); got != accounts.StateAwaitingMFA {
		t.Fatalf("expected awaiting_mfa, got %s", got)
	}
	if a.FullName != "A" {
		t.Fatalf("expected full name A, got %q", a.FullName)
	}
}

func TestSignupWeakPasswordReportsLength(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Weak1!", FullName: "A"})
	var pe *PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	found := false
	for _, v := range pe.Violations {
		if v.Code == "min_length" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected min_length violation, got %+v", pe.Violations)
	}
	if f.store.Len() != 0 {
		t.Fatal("no account may be created on policy failure")
	}
}

func TestSignupVerifyScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	res, err := f.engine.Signup(ctx, SignupInput{Email: "  Guest@Example.com ", Password: guestPassword, FullName: guestName})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if res.Email != guestEmail || !res.RequiresMFA {
		t.Fatalf("unexpected signup result %+v", res)
	}
	if !res.ExpiresAt.Equal(f.clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("unexpected challenge expiry %v", res.ExpiresAt)
	}

	a := f.account(t, guestEmail)
	if a.OTPHash == "" || a.MFAEnabled || a.RefreshTokenHash != "" {
		t.Fatalf("signup must leave a pending challenge and no session: %+v", a)
	}
	code := f.code(t, guestEmail)
	if strings.Contains(a.OTPHash, code) {
		t.Fatal("code must be stored hashed")
	}

	if _, err := f.engine.VerifyMFA(ctx, guestEmail, wrongCode(code)); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
	if got := f.account(t, guestEmail).LoginAttempts; got != 1 {
		t.Fatalf("expected 1 counted failure, got %d", got)
	}

	sess, err := f.engine.VerifyMFA(ctx, guestEmail, code)
	if err != nil {
		t.Fatalf("VerifyMFA failed: %v", err)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if !sess.Profile.MFAEnabled || sess.Profile.Email != guestEmail || sess.Profile.Role != "user" {
		t.Fatalf("unexpected profile %+v", sess.Profile)
	}

	a = f.account(t, guestEmail)
	if a.LoginAttempts != 0 || a.HasChallenge() || a.RefreshTokenHash == "" {
		t.Fatalf("success must reset attempts, consume the code and bind a session: %+v", a)
	}

	if _, err := f.engine.VerifyMFA(ctx, guestEmail, code); !errors.Is(err, ErrOTPNoChallenge) {
		t.Fatalf("a code is accepted once; got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)

	_, err := f.engine.Signup(context.Background(), SignupInput{Email: "GUEST@example.com", Password: guestPassword, FullName: guestName})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if f.metric(MetricSignupDuplicate) != 1 {
		t.Fatal("expected duplicate metric")
	}
}

func TestSignupDeliveryFailureKeepsAccountAndChallenge(t *testing.T) {
	failing := notify.SenderFunc(func(context.Context, notify.Message) error {
		return errors.New("smtp down")
	})
	f := newEngineFixture(t, withSender(failing))

	_, err := f.engine.Signup(context.Background(), SignupInput{Email: guestEmail, Password: guestPassword, FullName: guestName})
	if !errors.Is(err, ErrChallengeDelivery) {
		t.Fatalf("expected ErrChallengeDelivery, got %v", err)
	}
	if !f.account(t, guestEmail).HasChallenge() {
		t.Fatal("account and challenge must persist after a delivery failure")
	}
}

func TestLoginNeverIssuesTokens(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)

	res, err := f.engine.Login(context.Background(), guestEmail, guestPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.RequiresMFA {
		t.Fatal("login must require MFA")
	}
	if !f.account(t, guestEmail).HasChallenge() {
		t.Fatal("login must issue a challenge")
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)
	ctx := context.Background()

	_, unknownErr := f.engine.Login(ctx, "nobody@example.com", guestPassword)
	_, wrongErr := f.engine.Login(ctx, guestEmail, "Wrong-Password-99!")
	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("unknown email and wrong password must be indistinguishable")
	}
}

func TestLoginLocksAfterFiveFailuresAndResetsToOne(t *testing.T) {
	f := newEngineFixture(t)
	f.signupVerified(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := f.engine.Login(ctx, guestEmail, "Wrong-Password-99!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	a := f.account(t, guestEmail)
	if a.LoginAttempts != 5 || a.LockUntil == nil {
		t.Fatalf("fifth failure must lock: %+v", a)
	}
	wantUntil := f.clock.Now().Add(15 * time.Minute)
	if !a.LockUntil.Equal(wantUntil) {
		t.Fatalf("expected lock until %v, got %v", wantUntil, a.LockUntil)
	}

	_, err := f.engine.Login(ctx, guestEmail, guestPassword)
	var le *LockedError
	if !errors.As(err, &le) || !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("correct password on a locked account must be refused, got %v", err)
	}
	if !le.Until.Equal(wantUntil) {
		t.Fatalf("unexpected lock end %v", le.Until)
	}
	if f.account(t, guestEmail).HasChallenge() {
		t.Fatal("locked account must not receive a challenge")
	}

	f.clock.Advance(15*time.Minute + time.Second)
	if _, err := f.engine.Login(ctx, guestEmail, "Wrong-Password-99!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after lock elapsed, got %v", err)
	}
	a = f.account(t, guestEmail)
	if a.LoginAttempts != 1 || a.LockUntil != nil {
		t.Fatalf("failure after an elapsed lock must reset to 1: %+v", a)
	}

	f.login(t, guestPassword)
	if got := f.account(t, guestEmail).LoginAttempts; got != 0 {
		t.Fatalf("full login must reset attempts, got %d", got)
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte(guestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	now := f.clock.Now()
	if err := f.store.Create(ctx, &accounts.Account{
		ID:                 "legacy-1",
		Email:              guestEmail,
		FullName:           guestName,
		Role:               accounts.RoleUser,
		PasswordHash:       string(legacy),
		PasswordHistory:    []string{string(legacy)},
		LastPasswordChange: &now,
		CreatedAt:          now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.engine.Login(ctx, guestEmail, guestPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if hash := f.account(t, guestEmail).PasswordHash; !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected argon2id hash after login, got %q", hash)
	}
	if f.metric(MetricPasswordHashUpgraded) != 1 {
		t.Fatal("expected upgrade metric")
	}
}

func TestProvisionAdminIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	p, created, err := f.engine.ProvisionAdmin(ctx, "admin@example.com", "Admin-Password-2026!", "")
	if err != nil || !created {
		t.Fatalf("ProvisionAdmin failed: %v created=%v", err, created)
	}
	if p.Role != "admin" || p.FullName != "Administrator" {
		t.Fatalf("unexpected admin profile %+v", p)
	}

	again, created, err := f.engine.ProvisionAdmin(ctx, "admin@example.com", "Admin-Password-2026!", "")
	if err != nil || created || again.ID != p.ID {
		t.Fatalf("second provision must return the same admin: %v created=%v", err, created)
	}

	f.signupVerified(t)
	if _, _, err := f.engine.ProvisionAdmin(ctx, guestEmail, "Admin-Password-2026!", ""); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists for a user account, got %v", err)
	}

	if !f.engine.Roles().Allows("admin", permission.AuditRead) || f.engine.Roles().Allows("user", permission.AuditRead) {
		t.Fatal("only admins may read the audit log")
	}
}

func TestSignupAuditsOnceEvenWhenSenderPanics(t *testing.T) {
	panicking := notify.SenderFunc(func(context.Context, notify.Message) error {
		panic("mailer exploded")
	})
	f := newEngineFixture(t, withSender(panicking))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		_, _ = f.engine.Signup(context.Background(), SignupInput{Email: guestEmail, Password: guestPassword, FullName: guestName})
	}()

	entries := f.drainAudit()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Action != auditlog.ActionSignupFailed || got.Outcome != auditlog.OutcomeFailure || got.Reason != string(reasonInternal) {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestEachOperationEmitsOneAuditEntry(t *testing.T) {
	f := newEngineFixture(t)
	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "test-agent")

	if _, err := f.engine.Signup(ctx, SignupInput{Email: guestEmail, Password: guestPassword, FullName: guestName}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	f.clock.Advance(time.Second)
	_, _ = f.engine.Login(ctx, guestEmail, "Wrong-Password-99!")
	f.clock.Advance(time.Second)
	if _, err := f.engine.VerifyMFA(ctx, guestEmail, f.code(t, guestEmail)); err != nil {
		t.Fatalf("VerifyMFA failed: %v", err)
	}

	entries := f.drainAudit()
	want := []auditlog.Action{
		auditlog.ActionSignupSuccess,
		auditlog.ActionLoginFailed,
		auditlog.ActionMFAVerificationSuccess,
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i, e := range entries {
		if e.Action != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], e.Action)
		}
		if e.IP != "203.0.113.7" || e.UserAgent != "test-agent" || e.AccountID == "" {
			t.Fatalf("entry %d missing request context: %+v", i, e)
		}
	}
	if entries[1].Reason != string(reasonInvalidCredentials) || entries[1].Metadata["attempts"] != "1" {
		t.Fatalf("unexpected failure entry %+v", entries[1])
	}

	trail, err := f.engine.AuditTrail(context.Background(), AuditQuery{AccountID: entries[0].AccountID})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(trail) != 3 || trail[0].Action != auditlog.ActionMFAVerificationSuccess {
		t.Fatalf("expected newest-first trail of 3, got %+v", trail)
	}
}

func TestRequestGateLimitsFailedLogins(t *testing.T) {
	f := newEngineFixture(t, withRedis(t, func(c *RateLimitConfig) { c.AuthMax = 2 }))
	f.signupVerified(t)
	ctx := WithClientIP(context.Background(), "198.51.100.1")

	for i := 0; i < 2; i++ {
		if _, err := f.engine.Login(ctx, guestEmail, "Wrong-Password-99!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if _, err := f.engine.Login(ctx, guestEmail, guestPassword); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	other := WithClientIP(context.Background(), "198.51.100.2")
	if _, err := f.engine.Login(other, guestEmail, guestPassword); err != nil {
		t.Fatalf("another IP must not be limited: %v", err)
	}
}
