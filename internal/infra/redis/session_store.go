package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Session aggregates stay in a local map so the in-process state machine
//     and broadcast logic keep working unchanged.
//   - Redis owns the join-code index: SETNX claims a code among live
//     sessions, so two instances can never hand out the same code, and a
//     liveness key marks the session for observability.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans snapshots out across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	codes    map[string]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		codes:    make(map[string]string),
	}
}

func (s *SessionStore) Put(session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed, err := s.client.SetNX(context.Background(), s.codeKey(session.JoinCode()), session.ID(), s.ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrCodeInUse
	}
	if _, taken := s.codes[session.JoinCode()]; taken {
		return domain.ErrCodeInUse
	}

	s.sessions[session.ID()] = session
	s.codes[session.JoinCode()] = session.ID()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.liveKey(session.ID()), "1", s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.codeKey(session.JoinCode()), s.liveKey(sessionID)).Err()
}

func (s *SessionStore) codeKey(code string) string {
	return "session:code:" + code
}

func (s *SessionStore) liveKey(sessionID string) string {
	return "session:live:" + sessionID
}
