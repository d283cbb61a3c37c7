package middleware

import (
	"net/http"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/internal"
)

// CSRF enforces the double-submit cookie: unsafe methods must echo the
// CSRF cookie in the CSRF header. It is a no-op when cfg.CSRF is false.
func CSRF(cfg staysafe.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.CSRF {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			c, err := r.Cookie(cfg.CSRFCookie)
			header := r.Header.Get(cfg.CSRFHeader)
			if err != nil || c.Value == "" || header == "" || !internal.EqualStrings(c.Value, header) {
				WriteError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IssueCSRFCookie sets a fresh CSRF cookie readable by scripts and returns
// its value.
func IssueCSRFCookie(w http.ResponseWriter, cfg staysafe.CookieConfig) (string, error) {
	token, err := internal.NewCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CSRFCookie,
		Value:    token,
		Path:     "/",
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
	return token, nil
}
