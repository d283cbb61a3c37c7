package staysafe

import internalmetrics "github.com/MrEthical07/staysafe/internal/metrics"

// MetricID identifies a counter or histogram slot in the engine metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricSignupSuccess               = internalmetrics.MetricSignupSuccess
	MetricSignupFailure               = internalmetrics.MetricSignupFailure
	MetricSignupDuplicate             = internalmetrics.MetricSignupDuplicate
	MetricLoginChallengeIssued        = internalmetrics.MetricLoginChallengeIssued
	MetricLoginFailure                = internalmetrics.MetricLoginFailure
	MetricLoginLocked                 = internalmetrics.MetricLoginLocked
	MetricAccountLocked               = internalmetrics.MetricAccountLocked
	MetricRateLimitHit                = internalmetrics.MetricRateLimitHit
	MetricMFASuccess                  = internalmetrics.MetricMFASuccess
	MetricMFAFailure                  = internalmetrics.MetricMFAFailure
	MetricMFAExpired                  = internalmetrics.MetricMFAExpired
	MetricChallengeDeliveryFailure    = internalmetrics.MetricChallengeDeliveryFailure
	MetricSessionCreated              = internalmetrics.MetricSessionCreated
	MetricSessionRevoked              = internalmetrics.MetricSessionRevoked
	MetricRefreshSuccess              = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure              = internalmetrics.MetricRefreshFailure
	MetricRefreshReplayRejected       = internalmetrics.MetricRefreshReplayRejected
	MetricLogout                      = internalmetrics.MetricLogout
	MetricAuthenticateFailure         = internalmetrics.MetricAuthenticateFailure
	MetricPasswordExpired             = internalmetrics.MetricPasswordExpired
	MetricPasswordChangeSuccess       = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld    = internalmetrics.MetricPasswordChangeInvalidOld
	MetricPasswordChangeReuseRejected = internalmetrics.MetricPasswordChangeReuseRejected
	MetricPasswordChangePolicy        = internalmetrics.MetricPasswordChangePolicyRejected
	MetricPasswordHashUpgraded        = internalmetrics.MetricPasswordHashUpgraded
	MetricProfileUpdate               = internalmetrics.MetricProfileUpdate
	// MetricValidateLatency is the Authenticate latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
