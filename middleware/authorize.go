package middleware

import (
	"net/http"

	"github.com/MrEthical07/staysafe/permission"
)

// RequireRole admits principals whose role is one of roles. It must run
// behind [Guard].
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				WriteError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits principals whose permission mask grants perm.
// An unknown permission denies everyone.
func RequirePermission(rm *permission.RoleManager, perm string) func(http.Handler) http.Handler {
	bit, known := rm.Registry().Bit(perm)
	rootReserved := rm.Registry().RootReserved()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !known || !p.Permissions.Has(bit, rootReserved) {
				WriteError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
