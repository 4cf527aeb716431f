package session

import (
	"net/http"
	"time"
)

// CookieSetter writes and clears client cookies.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, name string) error
}

// BaseCookieSetter provides a path-scoped cookie implementation.
type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    value,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, name string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	})
	return nil
}

// NewCookieSetter creates a cookie setter scoped to the root path.
func NewCookieSetter(httpOnly, secure bool) CookieSetter {
	return &BaseCookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
