// Package flows contains the account security state machine and the token
// issuer that the Engine composes into its operations.
//
// [Machine.Apply] is the only place lockout and challenge fields change.
// [BindRefresh] is the only place a refresh token is bound to an account;
// binding revokes whatever was bound before.
//
// # Architecture boundaries
//
// Machine is pure: it mutates the account it is handed and the caller
// persists it through one atomic store update. Issuer performs store I/O
// only through the accounts.Store it is given.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root staysafe package.
//   - Emit audit entries; the Engine emits one per transition.
package flows
