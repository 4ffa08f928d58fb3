package planner

import (
	"sync"
)

// SessionStore keeps one conversation history per session identifier, so
// concurrent clients never see each other's exchanges.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*History
	maxTurns int
}

// NewSessionStore creates a store whose histories keep at most maxTurns
// exchanges each; zero means the default of three.
func NewSessionStore(maxTurns int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*History),
		maxTurns: maxTurns,
	}
}

// Get returns the history for a session, creating an empty one on first use.
func (s *SessionStore) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		h = NewHistory(s.maxTurns)
		s.sessions[id] = h
	}
	return h
}
