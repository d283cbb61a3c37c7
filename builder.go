package staysafe

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	"github.com/MrEthical07/staysafe/fieldcrypt"
	internalaudit "github.com/MrEthical07/staysafe/internal/audit"
	"github.com/MrEthical07/staysafe/internal/challenge"
	"github.com/MrEthical07/staysafe/internal/flows"
	"github.com/MrEthical07/staysafe/internal/limiters"
	"github.com/MrEthical07/staysafe/internal/rate"
	"github.com/MrEthical07/staysafe/jwt"
	"github.com/MrEthical07/staysafe/notify"
	"github.com/MrEthical07/staysafe/password"
	"github.com/MrEthical07/staysafe/permission"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	store  accounts.Store
	redis  redis.UniversalClient

	auditSink  AuditSink
	auditStore auditlog.Store

	sender notify.Sender
	cipher fieldcrypt.Cipher
	roles  *permission.RoleManager
	logger *zap.Logger
	clock  func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the credential store. Required.
func (b *Builder) WithAccountStore(store accounts.Store) *Builder {
	b.store = store
	return b
}

// WithRedis enables the Redis request gate in front of login, MFA and
// password change.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink adds a sink that receives every audit entry.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithAuditStore persists audit entries and enables [Engine.AuditTrail].
func (b *Builder) WithAuditStore(store auditlog.Store) *Builder {
	b.auditStore = store
	return b
}

// WithCodeSender sets the one-time code delivery channel. Defaults to a
// [notify.LogSender] that does not reveal codes.
func (b *Builder) WithCodeSender(sender notify.Sender) *Builder {
	b.sender = sender
	return b
}

// WithFieldCipher sets the cipher for personal fields. Defaults to
// [fieldcrypt.Plain].
func (b *Builder) WithFieldCipher(c fieldcrypt.Cipher) *Builder {
	b.cipher = c
	return b
}

// WithRoles replaces [permission.Standard]. The manager must define the
// "user" and "admin" roles.
func (b *Builder) WithRoles(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for lock windows, challenge
// expiry, password age and token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	roles := b.roles
	if roles == nil {
		roles = permission.Standard()
	}
	for _, role := range []accounts.Role{accounts.RoleUser, accounts.RoleAdmin} {
		if _, ok := roles.Mask(string(role)); !ok {
			return nil, errors.New("role manager must define role " + string(role))
		}
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		store:      b.store,
		hasher:     hasher,
		tokens:     tokens,
		auditStore: b.auditStore,
		sender:     b.sender,
		cipher:     b.cipher,
		roles:      roles,
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
		now:        clock,
	}
	if engine.sender == nil {
		engine.sender = notify.LogSender{Logger: logger}
	}
	if engine.cipher == nil {
		engine.cipher = fieldcrypt.Plain{}
	}

	if engine.dummyHash, err = hasher.Hash("staysafe timing parity"); err != nil {
		return nil, err
	}

	engine.machine = flows.Machine{
		Lockout:    limiters.NewLockout(cfg.Lockout.MaxAttempts, cfg.Lockout.Duration),
		Challenges: challenge.NewManager(cfg.OTP.TTL, cfg.OTP.BcryptCost),
	}
	engine.issuer = &flows.Issuer{Tokens: tokens, Store: b.store, Now: clock}

	// -------- REQUEST GATE --------
	if b.redis != nil && cfg.RateLimit.Enabled {
		engine.gate = limiters.NewRequestGate(rate.New(b.redis), cfg.RateLimit.gate())
	}

	// -------- AUDIT --------
	var sinks internalaudit.MultiSink
	if b.auditStore != nil {
		sinks = append(sinks, internalaudit.NewStoreSink(b.auditStore, logger))
	}
	if b.auditSink != nil {
		sinks = append(sinks, b.auditSink)
	}
	if len(sinks) > 0 {
		engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sinks)
	}

	b.built = true

	return engine, nil
}
