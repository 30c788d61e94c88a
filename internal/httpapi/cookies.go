package httpapi

import (
	"net/http"

	"bridgelayer.app/internal/auth"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"

	clientHeader = "X-Client"
	clientWeb    = "web"
)

// wantsCookies decides the delivery channel: web clients declare themselves
// with the X-Client header, and any request already carrying a session cookie
// stays on the cookie channel. Everything else gets tokens in the body.
func wantsCookies(r *http.Request) bool {
	if r.Header.Get(clientHeader) == clientWeb {
		return true
	}
	if _, err := r.Cookie(accessCookie); err == nil {
		return true
	}
	if _, err := r.Cookie(refreshCookie); err == nil {
		return true
	}
	return false
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	sameSite := http.SameSiteLaxMode
	if a.opts.SecureCookies {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   a.opts.CookieDomain,
		MaxAge:   int(a.opts.Tokens.AccessTTL().Seconds()),
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Domain:   a.opts.CookieDomain,
		MaxAge:   int(a.opts.Tokens.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: sameSite,
	})
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   a.opts.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   a.opts.SecureCookies,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
