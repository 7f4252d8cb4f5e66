package session

import (
	"net/http"
	"strings"
)

// Invalidator is told when the scheduling authority rejects the session.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a plain function to Invalidator.
type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }

// Session is the caller's marketplace session as seen by the HTTP layer.
// It is passed explicitly to clients instead of living in package state.
type Session struct {
	Cookies     []*http.Cookie
	Invalidator Invalidator
}

// FromToken builds a session carrying a single cookie.
func FromToken(cookieName, token string, inv Invalidator) Session {
	token = strings.TrimSpace(token)
	if token == "" || cookieName == "" {
		return Session{Invalidator: inv}
	}
	return Session{
		Cookies:     []*http.Cookie{{Name: cookieName, Value: token}},
		Invalidator: inv,
	}
}

// FromRequest forwards the named cookie of an incoming request.
func FromRequest(r *http.Request, cookieName string, inv Invalidator) Session {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return Session{Invalidator: inv}
	}
	return Session{
		Cookies:     []*http.Cookie{{Name: c.Name, Value: c.Value}},
		Invalidator: inv,
	}
}

func (s Session) Authenticated() bool { return len(s.Cookies) > 0 }

// Attach adds the session cookies to req.
func (s Session) Attach(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(c)
	}
}

// Expired notifies the invalidator, if any.
func (s Session) Expired() {
	if s.Invalidator != nil {
		s.Invalidator.Invalidate()
	}
}
