package internaldefs

import (
	"github.com/MrEthical07/staysafe"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   staysafe.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   staysafe.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: staysafe.MetricSignupSuccess, Name: "staysafe_signup_success_total", Help: "Accounts registered with a pending verification code."},
	{ID: staysafe.MetricSignupFailure, Name: "staysafe_signup_failure_total", Help: "Signups rejected by validation or policy."},
	{ID: staysafe.MetricSignupDuplicate, Name: "staysafe_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: staysafe.MetricLoginChallengeIssued, Name: "staysafe_login_challenge_issued_total", Help: "Password checks that issued a verification code."},
	{ID: staysafe.MetricLoginFailure, Name: "staysafe_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: staysafe.MetricLoginLocked, Name: "staysafe_login_locked_total", Help: "Logins refused because the account is locked."},
	{ID: staysafe.MetricAccountLocked, Name: "staysafe_account_locked_total", Help: "Accounts that entered a lock window."},
	{ID: staysafe.MetricRateLimitHit, Name: "staysafe_rate_limit_hit_total", Help: "Requests denied by the request gate."},
	{ID: staysafe.MetricMFASuccess, Name: "staysafe_mfa_success_total", Help: "Verification codes accepted."},
	{ID: staysafe.MetricMFAFailure, Name: "staysafe_mfa_failure_total", Help: "Verification codes rejected."},
	{ID: staysafe.MetricMFAExpired, Name: "staysafe_mfa_expired_total", Help: "Verification codes submitted after expiry."},
	{ID: staysafe.MetricChallengeDeliveryFailure, Name: "staysafe_challenge_delivery_failure_total", Help: "Verification codes that could not be delivered."},
	{ID: staysafe.MetricSessionCreated, Name: "staysafe_session_created_total", Help: "Token pairs issued."},
	{ID: staysafe.MetricSessionRevoked, Name: "staysafe_session_revoked_total", Help: "Refresh bindings revoked."},
	{ID: staysafe.MetricRefreshSuccess, Name: "staysafe_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: staysafe.MetricRefreshFailure, Name: "staysafe_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: staysafe.MetricRefreshReplayRejected, Name: "staysafe_refresh_replay_rejected_total", Help: "Superseded refresh tokens presented again."},
	{ID: staysafe.MetricLogout, Name: "staysafe_logout_total", Help: "Logout operations."},
	{ID: staysafe.MetricAuthenticateFailure, Name: "staysafe_authenticate_failure_total", Help: "Access tokens rejected."},
	{ID: staysafe.MetricPasswordExpired, Name: "staysafe_password_expired_total", Help: "Passwords flagged as expired."},
	{ID: staysafe.MetricPasswordChangeSuccess, Name: "staysafe_password_change_success_total", Help: "Successful password changes."},
	{ID: staysafe.MetricPasswordChangeInvalidOld, Name: "staysafe_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: staysafe.MetricPasswordChangeReuseRejected, Name: "staysafe_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: staysafe.MetricPasswordChangePolicy, Name: "staysafe_password_change_policy_rejected_total", Help: "Password changes rejected by the strength rules."},
	{ID: staysafe.MetricPasswordHashUpgraded, Name: "staysafe_password_hash_upgraded_total", Help: "Stored hashes re-hashed with current parameters."},
	{ID: staysafe.MetricProfileUpdate, Name: "staysafe_profile_update_total", Help: "Profile updates."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: staysafe.MetricValidateLatency, Name: "staysafe_authenticate_latency_seconds", Help: "Access token validation latency."},
}

// AuditDroppedName is the counter for audit entries lost to backpressure.
const (
	AuditDroppedName = "staysafe_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
