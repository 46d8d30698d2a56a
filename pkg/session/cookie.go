package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the cookie carrying the session token.
const CookieName = "sso_session"

// CookieSetter writes and clears session cookies on responses.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, name string) error
}

type cookieSetter struct {
	httpOnly bool
	secure   bool
}

// NewCookieSetter creates a cookie setter scoped to the whole site. Lax
// same-site keeps the cookie on the redirect back from an external provider.
func NewCookieSetter(httpOnly, secure bool) CookieSetter {
	return &cookieSetter{
		httpOnly: httpOnly,
		secure:   secure,
	}
}

func (c *cookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		Value:    value,
		Expires:  expire,
		HttpOnly: c.httpOnly,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *cookieSetter) ClearCookie(w http.ResponseWriter, name string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.httpOnly,
		Secure:   c.secure,
	})
	return nil
}
