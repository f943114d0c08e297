package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt"

// SetSessionCookie writes the session token as a cross-site, secure-only
// cookie living as long as the token. It is readable by the web client, which
// forwards it to check-auth as a query parameter.
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL / time.Second),
		Expires:  time.Now().Add(SessionTTL),
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// SessionCookie returns the session token from the request cookie, or "".
func SessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// TokenFromRequest returns the token passed as ?token=, falling back to the
// session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return SessionCookie(r)
}
