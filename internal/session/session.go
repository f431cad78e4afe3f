/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session identifies anonymous players. A session id is an opaque
// UUID carried in a cookie, or in the X-Session-Id header for clients that
// cannot keep cookies.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "yementuel_session"
	HeaderName = "X-Session-Id"
	MaxAge     = 24 * time.Hour
)

// Issue returns a fresh session id.
func Issue() string {
	return uuid.NewString()
}

// Resolve returns the session id held by carrier, if it is a well-formed id.
// Ids are returned in canonical lowercase form.
func Resolve(carrier string) (string, bool) {
	carrier = strings.TrimSpace(carrier)
	if carrier == "" {
		return "", false
	}

	id, err := uuid.Parse(carrier)
	if err != nil || id == uuid.Nil {
		return "", false
	}

	return id.String(), true
}

// Read returns the session id presented by r without issuing one. The cookie
// wins over the header.
func Read(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, ok := Resolve(c.Value); ok {
			return id, true
		}
	}

	return Resolve(r.Header.Get(HeaderName))
}

// FromRequest returns the session id for r, issuing a new one and setting
// the cookie on w when r carries none. issued reports whether that happened.
func FromRequest(w http.ResponseWriter, r *http.Request) (id string, issued bool) {
	if id, ok := Read(r); ok {
		return id, false
	}

	id = Issue()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	return id, true
}

func secure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
