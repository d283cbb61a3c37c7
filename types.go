package staysafe

import (
	"io"
	"time"

	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/auditlog"
	internalaudit "github.com/MrEthical07/staysafe/internal/audit"
	"github.com/MrEthical07/staysafe/password"
	"github.com/MrEthical07/staysafe/permission"
)

// SignupInput is the registration request.
type SignupInput struct {
	Email    string
	Password string
	FullName string
	// Phone is optional E.164. It is stored encrypted.
	Phone string
}

// ChallengeResult is returned by Signup and Login. No tokens are issued
// until the one-time code is verified.
type ChallengeResult struct {
	Email       string    `json:"email"`
	RequiresMFA bool      `json:"requiresMfa"`
	ExpiresAt   time.Time `json:"-"`
}

// Profile is the public view of an account. It never carries password,
// history, challenge or token fields.
type Profile struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"fullName"`
	Phone              string     `json:"phone,omitempty"`
	Role               string     `json:"role"`
	MFAEnabled         bool       `json:"mfaEnabled"`
	PasswordExpired    bool       `json:"passwordExpired"`
	LastPasswordChange *time.Time `json:"lastPasswordChange,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Session is a freshly issued token pair plus the account profile.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Profile          Profile
}

// Principal is the authenticated caller resolved from an access token.
type Principal struct {
	AccountID   string
	Email       string
	Role        string
	Permissions permission.Mask64
	TokenID     string
	ExpiresAt   time.Time
}

// AuthOptions tunes Authenticate for a route.
type AuthOptions struct {
	// AllowExpiredPassword lets a caller whose password has expired through,
	// so they can reach the change-password route.
	AllowExpiredPassword bool
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged; an empty Phone clears it.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
}

// AuditQuery selects audit entries for forensic review.
type AuditQuery struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

// StrengthReport is the advisory result for a candidate password.
type StrengthReport struct {
	Valid      bool                 `json:"valid"`
	Violations []password.Violation `json:"violations"`
	Score      int                  `json:"score"`
	Label      string               `json:"label"`
}

// AuditEntry is one immutable security event.
type AuditEntry = auditlog.Entry

// AuditSink receives entries from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all entries.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded entries to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func toProfile(a *accounts.Account) Profile {
	return Profile{
		ID:                 a.ID,
		Email:              a.Email,
		FullName:           a.FullName,
		Role:               string(a.Role),
		MFAEnabled:         a.MFAEnabled,
		PasswordExpired:    a.PasswordExpired,
		LastPasswordChange: a.LastPasswordChange,
		CreatedAt:          a.CreatedAt,
	}
}
