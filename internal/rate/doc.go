// Package rate provides Redis-backed fixed-window counters keyed by a named
// policy and a subject (IP, email, account id).
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys are rl:<policy>:<subject>.
// A nil *Limiter or a disabled Policy allows everything.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
package rate
