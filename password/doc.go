// Package password owns password hashing and the password policy rules.
//
// # Hashing
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes left by older deployments and reports
// them through [Hasher.NeedsUpgrade] so the caller can re-hash after the next
// successful check.
//
// # Policy
//
// [ValidateStrength] and [IsExpired] are pure functions of their inputs and
// the supplied clock. [Strength] is an advisory meter for clients.
// [AppendHistory] and [Reused] implement the last-3 reuse rule.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other staysafe package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
