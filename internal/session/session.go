// Package session holds the logged-in identity and its bearer token.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matheus3301/chatflow/internal/chat"
)

// Persister stores the session durably.
type Persister interface {
	LoadSession() (*chat.Session, error)
	SaveSession(s *chat.Session) error
	ClearSession() error
}

// Store is the in-memory view of the persisted session.
type Store struct {
	db  Persister
	now func() time.Time

	mu      sync.RWMutex
	current *chat.Session
}

// New creates a session store backed by db.
func New(db Persister) *Store {
	return &Store{db: db, now: time.Now}
}

// Load reads the persisted session into memory.
func (s *Store) Load() (*chat.Session, error) {
	sess, err := s.db.LoadSession()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return s.Current(), nil
}

// Current returns a copy of the session, or nil when logged out.
func (s *Store) Current() *chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// UserID returns the logged-in user id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.User.ID
}

// Save persists sess and makes it current.
func (s *Store) Save(sess chat.Session) error {
	if err := s.db.SaveSession(&sess); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// Clear removes the session from memory and disk. The in-memory copy is
// dropped even when the disk write fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return s.db.ClearSession()
}

// IsAuthenticated reports whether a session with an unexpired token is held.
func (s *Store) IsAuthenticated() bool {
	tok := s.Token()
	return tok != "" && !Expired(tok, s.now())
}

// Expired reports whether token is a JWT whose exp claim is before now.
// Opaque tokens and tokens without exp never expire client-side.
func Expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}
