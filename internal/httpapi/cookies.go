package httpapi

import (
	"net/http"

	"github.com/MrEthical07/staysafe"
)

func (a *API) setSessionCookies(w http.ResponseWriter, sess *staysafe.Session) {
	cfg := a.engine.Cookies()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.AccessName,
		Value:    sess.AccessToken,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(a.engine.AccessTTL().Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.RefreshName,
		Value:    sess.RefreshToken,
		Path:     cfg.RefreshPath,
		Domain:   cfg.Domain,
		MaxAge:   int(a.engine.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	cfg := a.engine.Cookies()
	for _, c := range []struct{ name, path string }{
		{cfg.AccessName, "/"},
		{cfg.RefreshName, cfg.RefreshPath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   cfg.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: cfg.SameSite,
		})
	}
}
