package auth

import (
	"net/http"
	"time"
)

const sessionCookieName = "session"

// ShouldUseCookies reports whether the client is a browser that expects
// cookie-based sessions. Browsers send an Origin header on cross-origin
// fetches; API clients attach the bearer token themselves.
func ShouldUseCookies(r *http.Request) bool {
	return r.Header.Get("Origin") != ""
}

// SetSessionCookie establishes the session cookie. HttpOnly keeps the session
// ID out of reach of page scripts; Secure is enabled outside development.
func SetSessionCookie(w http.ResponseWriter, sessionID string, isProduction bool, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionFromCookie reads the session ID from the request, if present.
func GetSessionFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
