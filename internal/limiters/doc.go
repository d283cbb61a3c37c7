// Package limiters holds the brute-force defenses of the auth core.
//
// # Limiters
//
//   - [Lockout] is the per-account failure counter stored on the account
//     record. It locks after MaxAttempts failures and restarts at 1 on the
//     first failure after a lock elapses.
//   - [RequestGate] applies Redis fixed-window budgets (auth, mfa, password)
//     ahead of credential checks. A nil gate allows everything.
//
// # What this package must NOT do
//
//   - Import the root staysafe package.
//   - Persist accounts; the caller owns the atomic update.
package limiters
