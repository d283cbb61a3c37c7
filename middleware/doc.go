// Package middleware adapts a staysafe.Engine to net/http.
//
// # Guards
//
//   - [Guard] resolves the access token (cookie first, then a Bearer header)
//     through Engine.Authenticate and stores the [staysafe.Principal] in the
//     request context.
//   - [RequireRole] and [RequirePermission] authorize an already guarded
//     request.
//   - [CSRF] enforces the double-submit cookie on unsafe methods.
//   - [RateLimiter] applies a per-client token bucket to a whole router.
//   - [ClientInfo] records the client IP and user agent for audit entries.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every token decision is delegated
// to Engine.Authenticate.
package middleware
