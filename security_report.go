package staysafe

import (
	"github.com/MrEthical07/staysafe/fieldcrypt"
	"github.com/MrEthical07/staysafe/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

// SecurityReport summarizes the effective configuration and which optional
// protections are wired in.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, plain := e.cipher.(fieldcrypt.Plain)
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin:     e.config.Password.UpgradeOnLogin,
		OTPTTL:             e.config.OTP.TTL,
		PasswordExpiryDays: e.config.Policy.ExpiryDays,
		HistoryDepth:       e.config.Policy.HistoryDepth,
		MaxLoginAttempts:   e.config.Lockout.MaxAttempts,
		LockoutDuration:    e.config.Lockout.Duration,
		GateConfigured:     e.gate != nil,
		GateEnabled:        e.config.RateLimit.Enabled,
		FieldEncryption:    e.cipher != nil && !plain,
		CSRFEnabled:        e.config.Cookie.CSRF,
		SecureCookies:      e.config.Cookie.Secure,
		AuditStore:         e.auditStore != nil,
	})
}
