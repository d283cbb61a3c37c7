package staysafe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/notify"
)

const (
	guestEmail    = "guest@example.com"
	guestPassword = "Sunny-Beach-2026!"
	guestName     = "Grace Guest"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	engine     *Engine
	store      *accounts.MemoryStore
	sender     *notify.MemorySender
	sink       *ChannelSink
	auditStore *auditlog.MemoryStore
	clock      *testClock
}

type fixtureOption func(*Builder)

func engineTestConfig() Config {
	cfg := validTestConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.OTP.BcryptCost = 4
	return cfg
}

func newEngineFixture(t *testing.T, opts ...fixtureOption) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store:      accounts.NewMemoryStore(),
		sender:     notify.NewMemorySender(),
		sink:       NewChannelSink(256),
		auditStore: auditlog.NewMemoryStore(),
		clock:      newTestClock(),
	}

	b := New().
		WithConfig(engineTestConfig()).
		WithAccountStore(f.store).
		WithCodeSender(f.sender).
		WithAuditSink(f.sink).
		WithAuditStore(f.auditStore).
		WithClock(f.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

func withRedis(t *testing.T, mutate func(*RateLimitConfig)) fixtureOption {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return func(b *Builder) {
		b.WithRedis(rdb)
		if mutate != nil {
			mutate(&b.config.RateLimit)
		}
	}
}

func withSender(s notify.Sender) fixtureOption {
	return func(b *Builder) { b.WithCodeSender(s) }
}

func (f *engineFixture) code(t *testing.T, email string) string {
	t.Helper()
	code, err := f.sender.Code(email)
	if err != nil {
		t.Fatalf("no code delivered: %v", err)
	}
	return code
}

func (f *engineFixture) account(t *testing.T, email string) *accounts.Account {
	t.Helper()
	a, err := f.store.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	return a
}

// signupVerified creates the guest account and completes its first MFA.
func (f *engineFixture) signupVerified(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()

	if _, err := f.engine.Signup(ctx, SignupInput{Email: guestEmail, Password: guestPassword, FullName: guestName}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	sess, err := f.engine.VerifyMFA(ctx, guestEmail, f.code(t, guestEmail))
	if err != nil {
		t.Fatalf("VerifyMFA failed: %v", err)
	}
	return sess
}

// login runs a full password + code login for the guest account.
func (f *engineFixture) login(t *testing.T, secret string) *Session {
	t.Helper()
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, guestEmail, secret); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	sess, err := f.engine.VerifyMFA(ctx, guestEmail, f.code(t, guestEmail))
	if err != nil {
		t.Fatalf("VerifyMFA failed: %v", err)
	}
	return sess
}

// drainAudit closes the engine and returns every entry the sink received.
func (f *engineFixture) drainAudit() []auditlog.Entry {
	f.engine.Close()
	var out []auditlog.Entry
	for {
		select {
		case e := <-f.sink.Entries():
			out = append(out, e)
		default:
			return out
		}
	}
}

func (f *engineFixture) metric(id MetricID) uint64 {
	return f.engine.MetricsSnapshot().Counters[id]
}

func wrongCode(code string) string {
	if code == "100000" {
		return "100001"
	}
	return "100000"
}
