// Package session holds the in-process view of who is signed in. Cache
// warming and user-scoped fetches consult it; there is no session at all
// until SignIn is called.
package session

import (
	"sync"
	"time"
)

// User identifies the signed-in learner.
type User struct {
	ID          string
	DisplayName string
	SignedInAt  time.Time
}

// Store tracks the current session. At most one user is signed in at a time.
type Store struct {
	mu      sync.RWMutex
	current *User
}

func NewStore() *Store {
	return &Store{}
}

// SignIn records the active user, replacing any previous session.
func (s *Store) SignIn(id, displayName string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &User{ID: id, DisplayName: displayName, SignedInAt: time.Now()}
	return s.current
}

// SignOut clears the session. Returns false if nobody was signed in.
func (s *Store) SignOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.current != nil
	s.current = nil
	return had
}

// CurrentUser returns the signed-in user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// Active reports whether a user is signed in.
func (s *Store) Active() bool {
	return s.CurrentUser() != nil
}
