// Package config loads the server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/notify"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPAddr    string
	LogLevel    string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	EncryptionKey    string

	PasswordExpiryDays int
	MaxLoginAttempts   int
	LockoutDuration    time.Duration

	SMTP notify.SMTPConfig

	AdminEmail    string
	AdminPassword string
	AdminName     string

	CookieSecure       bool
	CSRFEnabled        bool
	TrustProxy         bool
	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	MetricsAddr        string
}

// Load reads the given .env files (".env" when none are named) and then
// the process environment. Variables already set are never overridden by
// the files.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":5000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTokenTTL:   getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),

		PasswordExpiryDays: getInt("PASSWORD_EXPIRY_DAYS", 90),
		MaxLoginAttempts:   getInt("MAX_LOGIN_ATTEMPTS", 5),
		LockoutDuration:    time.Duration(getInt("LOCKOUT_DURATION_MINUTES", 15)) * time.Minute,

		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@staysafe.local"),
		},

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		CookieSecure:       getBool("COOKIE_SECURE", true),
		CSRFEnabled:        getBool("CSRF_ENABLED", true),
		TrustProxy:         getBool("TRUST_PROXY", false),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitMax:       getInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:    getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if c.Production() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if !c.CookieSecure {
			return fmt.Errorf("COOKIE_SECURE must be true in production")
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Production reports whether APP_ENV is "production".
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Engine maps the settings onto the engine configuration. Library
// defaults are kept for everything the environment does not cover.
func (c Config) Engine() staysafe.Config {
	cfg := staysafe.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.JWTAccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.JWTRefreshSecret)
	cfg.JWT.AccessTTL = c.AccessTokenTTL
	cfg.JWT.RefreshTTL = c.RefreshTokenTTL
	cfg.Policy.ExpiryDays = c.PasswordExpiryDays
	cfg.Lockout.MaxAttempts = c.MaxLoginAttempts
	cfg.Lockout.Duration = c.LockoutDuration
	cfg.RateLimit.Enabled = c.RedisAddr != ""
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Cookie.CSRF = c.CSRFEnabled
	return cfg
}

// Logger builds a JSON production logger, or a console development logger
// outside production, at LogLevel.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.Production() {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
