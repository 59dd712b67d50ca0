package streaming

import (
	"sync"
	"time"
)

// SessionStore keeps each login session's TokenBundle in memory.
//
// LOCKING:
// The outer mutex only guards the map. Each session has its own mutex, held for
// the whole read-modify-write of a refresh, so two refreshes for the same
// session run one after the other while other sessions are never blocked
// behind a slow token endpoint.
//
// EXPIRY:
// A slot lives for ttl from its creation, the same lifetime as the session
// cookie it belongs to. Expired slots read as absent and are swept whenever a
// new slot is created, so sessions that never log out do not pile up.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

type sessionEntry struct {
	mu        sync.Mutex
	bundle    *TokenBundle
	expiresAt time.Time
}

// NewSessionStore returns a store whose slots expire ttl after creation.
// A ttl of zero or less keeps slots until Delete.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) expired(e *sessionEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// entry returns the session's slot, creating it on first use.
func (s *SessionStore) entry(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[sessionID]; ok && !s.expired(e, now) {
		return e
	}

	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}

	e := &sessionEntry{}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.sessions[sessionID] = e
	return e
}

func (s *SessionStore) lookup(sessionID string) (*sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.expired(e, s.now()) {
		delete(s.sessions, sessionID)
		return nil, false
	}
	return e, true
}

// Get returns a copy of the session's current bundle.
func (s *SessionStore) Get(sessionID string) (TokenBundle, bool) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return TokenBundle{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bundle == nil {
		return TokenBundle{}, false
	}
	return *e.bundle, true
}

// Delete drops the session and its bundle.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len is the number of sessions holding a slot, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
