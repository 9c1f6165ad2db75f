package auth

import (
	"sync"
	"time"
)

// Session holds the bearer credential of one desk session. It satisfies
// upstream.TokenSource. An expired token counts as no session.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims *Claims
	now    func() time.Time
}

func NewSession() *Session {
	return &Session{now: time.Now}
}

// Set replaces the credential. An empty token clears it.
func (s *Session) Set(token string, claims *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		s.token, s.claims = "", nil
		return
	}
	s.token, s.claims = token, claims
}

func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expiredLocked() {
		return "", false
	}
	return s.token, true
}

// Subject returns the user id of the current credential, or "".
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil || s.expiredLocked() {
		return ""
	}
	return s.claims.Subject
}

func (s *Session) expiredLocked() bool {
	if s.claims == nil || s.claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(s.claims.ExpiresAt.Time)
}
