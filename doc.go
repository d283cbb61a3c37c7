// Package staysafe is the authentication and account-security core of a
// hotel booking platform: signup and login with an emailed one-time code,
// per-account lockout, password lifetime rules and rotating JWT sessions.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Flow
//
// Signup and Login never return tokens. Both leave a hashed 6-digit code on
// the account and hand the plaintext to a [notify.Sender]. [Engine.VerifyMFA]
// consumes the code and binds a fresh access/refresh pair; binding a new
// refresh token revokes the previous one. [Engine.Authenticate] backs every
// guarded route and refuses locked accounts and expired passwords.
//
// # Architecture boundaries
//
// staysafe is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (Profile, Session, Principal, MetricsSnapshot). The
// security state machine, challenge issuance, lockout accounting, request
// gating and audit dispatch live under internal/ and are never exported.
//
// Every account mutation goes through one [accounts.Store.Update] call, so a
// request reads and writes an account atomically. Every state-changing
// Engine operation emits exactly one audit entry, including when it panics.
package staysafe
