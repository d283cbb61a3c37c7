// Package internal contains helpers that are private to staysafe: secure
// random codes, token digests and constant-time comparison.
//
// # Sub-packages
//
//   - audit: async entry dispatch (Dispatcher + Sink implementations)
//   - challenge: one-time passcode issuance and verification
//   - config: environment loading for the server binary
//   - dbx: database/sql transaction helper
//   - flows: the account security state machine and token issuer
//   - httpapi: HTTP handlers, middleware and instrumentation
//   - ids: ULID generation
//   - limiters: account lockout and request gates
//   - metrics: lock-free counters and latency histograms
//   - migrations: embedded Postgres schema
//   - rate: Redis fixed-window counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public staysafe API.
package internal
