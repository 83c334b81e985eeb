package memory

import (
	"sync"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// The join-code index guarantees codes are unique among live sessions only;
// a code can be reused after its session is deleted.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	codes    map[string]string // join code -> session ID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		codes:    make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[session.JoinCode()]; taken {
		return domain.ErrCodeInUse
	}
	s.sessions[session.ID()] = session
	s.codes[session.JoinCode()] = session.ID()
	return nil
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) GetByCode(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.codes, session.JoinCode())
	delete(s.sessions, sessionID)
}
