package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/staysafe"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [Guard].
func PrincipalFromContext(ctx context.Context) (*staysafe.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*staysafe.Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *staysafe.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard rejects requests without a valid access token. The token is read
// from the access cookie, then from an "Authorization: Bearer" header.
//
// Locked accounts and expired passwords are answered with 403 so clients
// can tell them apart from a missing session.
func Guard(engine *staysafe.Engine, opts staysafe.AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			token, ok := AccessToken(r, engine.Cookies().AccessName)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			p, err := engine.Authenticate(r.Context(), token, opts)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	var locked *staysafe.LockedError
	switch {
	case errors.As(err, &locked):
		WriteJSON(w, http.StatusForbidden, map[string]any{
			"message":   "Account is temporarily locked",
			"lockUntil": locked.Until.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, staysafe.ErrPasswordExpired):
		WriteJSON(w, http.StatusForbidden, map[string]any{
			"message":         "Password has expired. Please change your password.",
			"passwordExpired": true,
		})
	case errors.Is(err, staysafe.ErrTokenExpired):
		WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"message": "Token expired",
			"code":    "token_expired",
		})
	case errors.Is(err, staysafe.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, staysafe.ErrBackendUnavailable):
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	default:
		WriteError(w, http.StatusUnauthorized, "Invalid token")
	}
}

// AccessToken reads the access token from the named cookie, then from an
// "Authorization: Bearer" header.
func AccessToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"message": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}
