package staysafe

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/staysafe/internal/limiters"
	"github.com/MrEthical07/staysafe/internal/rate"
	"github.com/MrEthical07/staysafe/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig],
// override what you need and pass it to [Builder.WithConfig].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Policy    PolicyConfig
	OTP       OTPConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Cookie    CookieConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
//
// With "hs256" the access and refresh tokens are signed with separate
// secrets. With "ed25519" both use PrivateKey/PublicKey.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" or "ed25519"

	AccessSecret  []byte
	RefreshSecret []byte

	PrivateKey []byte
	PublicKey  []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// UpgradeOnLogin re-hashes legacy or weaker hashes after a successful
	// password check.
	UpgradeOnLogin bool
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig controls the password lifecycle rules.
type PolicyConfig struct {
	ExpiryDays   int
	HistoryDepth int
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls the one-time passcode challenge.
type OTPConfig struct {
	TTL        time.Duration
	BcryptCost int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls per-account brute-force locking.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the Redis request gate. It only applies when a
// Redis client is supplied through [Builder.WithRedis].
type RateLimitConfig struct {
	Enabled bool

	AuthMax    int
	AuthWindow time.Duration

	MFAMax    int
	MFAWindow time.Duration

	PasswordMax    int
	PasswordWindow time.Duration
}

// gate converts the budgets into request-gate policies.
func (c RateLimitConfig) gate() limiters.GateConfig {
	return limiters.GateConfig{
		Auth:     rate.Policy{Name: "auth", Max: c.AuthMax, Window: c.AuthWindow},
		MFA:      rate.Policy{Name: "mfa", Max: c.MFAMax, Window: c.MFAWindow},
		Password: rate.Policy{Name: "password", Max: c.PasswordMax, Window: c.PasswordWindow},
	}
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls how the HTTP layer carries session tokens.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	RefreshPath string
	Domain      string
	Secure      bool
	SameSite    http.SameSite

	// CSRF enables double-submit protection on unsafe methods.
	CSRF       bool
	CSRFCookie string
	CSRFHeader string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	gate := limiters.DefaultGateConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "staysafe",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			ExpiryDays:   90,
			HistoryDepth: password.HistoryDepth,
		},
		OTP: OTPConfig{
			TTL:        10 * time.Minute,
			BcryptCost: 10,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			AuthMax:        gate.Auth.Max,
			AuthWindow:     gate.Auth.Window,
			MFAMax:         gate.MFA.Max,
			MFAWindow:      gate.MFA.Window,
			PasswordMax:    gate.Password.Max,
			PasswordWindow: gate.Password.Window,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Cookie: CookieConfig{
			AccessName:  "accessToken",
			RefreshName: "refreshToken",
			RefreshPath: "/api/auth",
			Secure:      true,
			SameSite:    http.SameSiteStrictMode,
			CSRF:        true,
			CSRFCookie:  "XSRF-TOKEN",
			CSRFHeader:  "X-XSRF-TOKEN",
		},
	}
}

// DefaultConfig returns the production defaults. JWT secrets are empty and
// must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be > AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
			return errors.New("hs256 requires AccessSecret and RefreshSecret of at least 32 bytes")
		}
		if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
			return errors.New("JWT AccessSecret and RefreshSecret must differ")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Policy
	if c.Policy.ExpiryDays <= 0 {
		return errors.New("Policy ExpiryDays must be > 0")
	}
	if c.Policy.HistoryDepth < 1 || c.Policy.HistoryDepth > 24 {
		return errors.New("Policy HistoryDepth must be between 1 and 24")
	}

	// OTP
	if c.OTP.TTL <= 0 || c.OTP.TTL > time.Hour {
		return errors.New("OTP TTL must be > 0 and <= 1h")
	}
	if c.OTP.BcryptCost < 4 || c.OTP.BcryptCost > 31 {
		return errors.New("OTP BcryptCost must be between 4 and 31")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.AuthMax < 1 || c.RateLimit.AuthWindow <= 0 {
			return errors.New("RateLimit Auth budget must be positive")
		}
		if c.RateLimit.MFAMax < 1 || c.RateLimit.MFAWindow <= 0 {
			return errors.New("RateLimit MFA budget must be positive")
		}
		if c.RateLimit.PasswordMax < 1 || c.RateLimit.PasswordWindow <= 0 {
			return errors.New("RateLimit Password budget must be positive")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Cookie
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" {
		return errors.New("Cookie names must be set")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie AccessName and RefreshName must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}
	if c.Cookie.CSRF && (c.Cookie.CSRFCookie == "" || c.Cookie.CSRFHeader == "") {
		return errors.New("Cookie CSRF requires CSRFCookie and CSRFHeader")
	}

	return nil
}
