package security

import "time"

// PasswordReport carries the Argon2id parameters for new hashes.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is a read-only snapshot of the engine's security posture.
type Report struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Argon2             PasswordReport
	UpgradeOnLogin     bool
	OTPTTL             time.Duration
	PasswordExpiryDays int
	HistoryDepth       int
	LockoutActive      bool
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	RequestGateActive  bool
	FieldEncryption    bool
	CSRFActive         bool
	SecureCookies      bool
	AuditPersisted     bool
}

// ReportInput is the raw configuration a Report is derived from.
type ReportInput struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Password           PasswordReport
	UpgradeOnLogin     bool
	OTPTTL             time.Duration
	PasswordExpiryDays int
	HistoryDepth       int
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	GateConfigured     bool
	GateEnabled        bool
	FieldEncryption    bool
	CSRFEnabled        bool
	SecureCookies      bool
	AuditStore         bool
}

func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:   input.SigningAlgorithm,
		AccessTTL:          input.AccessTTL,
		RefreshTTL:         input.RefreshTTL,
		Argon2:             input.Password,
		UpgradeOnLogin:     input.UpgradeOnLogin,
		OTPTTL:             input.OTPTTL,
		PasswordExpiryDays: input.PasswordExpiryDays,
		HistoryDepth:       input.HistoryDepth,
		LockoutActive:      input.MaxLoginAttempts > 0 && input.LockoutDuration > 0,
		MaxLoginAttempts:   input.MaxLoginAttempts,
		LockoutDuration:    input.LockoutDuration,
		RequestGateActive:  input.GateConfigured && input.GateEnabled,
		FieldEncryption:    input.FieldEncryption,
		CSRFActive:         input.CSRFEnabled,
		SecureCookies:      input.SecureCookies,
		AuditPersisted:     input.AuditStore,
	}
}
