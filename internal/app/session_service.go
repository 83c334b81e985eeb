package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// DefaultAvatarBaseURL builds DiceBear-style avatars from a name seed.
const DefaultAvatarBaseURL = "https://api.dicebear.com/8.x/thumbs/svg"

// codeAttempts bounds the retry loop when a generated join code collides
// with a live session.
const codeAttempts = 8

// SessionRepository abstracts how live sessions are stored and how join
// codes are resolved (in-memory, Redis, etc).
type SessionRepository interface {
	// Put registers a session under its ID and claims its join code among
	// live sessions. Returns domain.ErrCodeInUse on a code collision.
	Put(session *Session) error
	Get(sessionID string) (*Session, bool)
	GetByCode(code string) (*Session, bool)
	Delete(sessionID string)
}

// DeckRepository loads question decks (from cache/backing store).
type DeckRepository interface {
	GetDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// SessionService contains the session-level use cases: the public surface a
// host console and player clients drive.
type SessionService struct {
	sessions   SessionRepository
	decks      DeckRepository
	avatarBase string
	now        func() time.Time
}

func NewSessionService(store SessionRepository, decks DeckRepository, avatarBase string) *SessionService {
	return NewSessionServiceWithClock(store, decks, avatarBase, time.Now)
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store SessionRepository, decks DeckRepository, avatarBase string, now func() time.Time) *SessionService {
	if avatarBase == "" {
		avatarBase = DefaultAvatarBaseURL
	}
	return &SessionService{sessions: store, decks: decks, avatarBase: avatarBase, now: now}
}

// CreatedSession is what the host gets back: the join code to share with
// players and the secret that authorizes host actions.
type CreatedSession struct {
	SessionID  string `json:"sessionId"`
	JoinCode   string `json:"joinCode"`
	HostSecret string `json:"hostSecret"`
}

// JoinResult identifies the admitted participant.
type JoinResult struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

// CreateSession builds a lobby-phase session seeded from the named deck, or
// from the built-in sample deck when deckID is empty. Join codes are six
// digits, unique among live sessions; allocation retries on collision.
func (s *SessionService) CreateSession(ctx context.Context, hostName, deckID string) (CreatedSession, error) {
	var questions []domain.Question
	if deckID == "" {
		questions = DefaultDeck().Questions
	} else {
		deck, err := s.decks.GetDeck(ctx, deckID)
		if err != nil {
			return CreatedSession{}, err
		}
		questions = deck.Questions
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return CreatedSession{}, fmt.Errorf("deck %q: %w", deckID, err)
		}
	}

	hostSecret := uuid.NewString()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		session := NewSessionWithClock(uuid.NewString(), newJoinCode(), hostSecret, hostName, questions, s.now)
		err := s.sessions.Put(session)
		if errors.Is(err, domain.ErrCodeInUse) {
			continue
		}
		if err != nil {
			return CreatedSession{}, err
		}
		return CreatedSession{
			SessionID:  session.ID(),
			JoinCode:   session.JoinCode(),
			HostSecret: hostSecret,
		}, nil
	}
	return CreatedSession{}, fmt.Errorf("allocate join code: %w", domain.ErrCodeInUse)
}

// Join resolves a join code to a live session and admits a participant. A
// missing avatar gets a generated one seeded from the display name.
func (s *SessionService) Join(_ context.Context, code, name, avatar string) (JoinResult, error) {
	session, ok := s.sessions.GetByCode(code)
	if !ok {
		return JoinResult{}, domain.ErrSessionNotFound
	}

	participantID := uuid.NewString()
	if avatar == "" {
		seed := name
		if seed == "" {
			seed = participantID
		}
		avatar = s.avatarBase + "?seed=" + url.QueryEscape(seed)
	}
	if _, err := session.Join(participantID, name, avatar); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{SessionID: session.ID(), ParticipantID: participantID}, nil
}

// AuthorizeHost checks a host secret against a session without mutating it.
func (s *SessionService) AuthorizeHost(sessionID, secret string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.CheckHostSecret(secret)
}

// StartQuestion opens the answering window for the question at index.
func (s *SessionService) StartQuestion(sessionID, secret string, index int) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.StartQuestion(secret, index)
}

// CloseAnswering ends the current answering window.
func (s *SessionService) CloseAnswering(sessionID, secret string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.CloseAnswering(secret)
}

// SubmitAnswer records a best-effort answer submission for a participant.
func (s *SessionService) SubmitAnswer(sessionID, participantID string, questionIndex, optionIndex int) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.SubmitAnswer(participantID, questionIndex, optionIndex)
}

// ScoreCurrentQuestion runs the scoring transaction for the closed question.
func (s *SessionService) ScoreCurrentQuestion(sessionID, secret string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.ScoreCurrentQuestion(secret)
}

// Advance moves to the next question or finishes the session.
func (s *SessionService) Advance(sessionID, secret string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Advance(secret)
}

// SetJoinAllowed opens or closes the room to new participants.
func (s *SessionService) SetJoinAllowed(sessionID, secret string, allow bool) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.SetAllowJoin(secret, allow)
}

// UpdateQuestion edits a question whose round has not started yet.
func (s *SessionService) UpdateQuestion(sessionID, secret string, index int, q domain.Question) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.UpdateQuestion(secret, index, q)
}

// Questions returns the session's deck for host views.
func (s *SessionService) Questions(sessionID, secret string) ([]domain.Question, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.CheckHostSecret(secret); err != nil {
		return nil, err
	}
	return session.Questions(), nil
}

// Snapshot returns the current state of a session.
func (s *SessionService) Snapshot(sessionID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives session snapshots on every
// change. The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Snapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Leave marks a participant absent and drops the session once finished and
// empty of present participants.
func (s *SessionService) Leave(_ context.Context, sessionID, participantID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Leave(participantID)
	if session.Finished() && session.Deserted() {
		s.sessions.Delete(sessionID)
	}
}

// newJoinCode generates a six digit human-entry code.
func newJoinCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}
