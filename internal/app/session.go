package app

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// answerKey identifies the single logical answer per (participant, question).
type answerKey struct {
	participantID string
	questionIndex int
}

// Session is the in-process aggregate for one quiz instance: the lifecycle
// state machine, the participant set, the answer log and the scoring engine.
// Every public method is one critical section, so the scoring transaction is
// atomic with respect to all concurrent readers and writers.
type Session struct {
	id         string
	joinCode   string
	hostSecret string
	now        func() time.Time

	mu           sync.RWMutex
	rec          domain.Session
	questions    []domain.Question
	participants map[string]*domain.Participant
	joinSeq      int
	answers      map[answerKey]domain.Answer
	subscribers  map[chan domain.Snapshot]struct{}
}

// NewSession builds a session in the lobby phase with joining open.
func NewSession(id, joinCode, hostSecret, hostName string, questions []domain.Question) *Session {
	return NewSessionWithClock(id, joinCode, hostSecret, hostName, questions, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, joinCode, hostSecret, hostName string, questions []domain.Question, now func() time.Time) *Session {
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].Index = i
	}
	return &Session{
		id:         id,
		joinCode:   joinCode,
		hostSecret: hostSecret,
		now:        now,
		rec: domain.Session{
			ID:                   id,
			JoinCode:             joinCode,
			HostName:             hostName,
			Phase:                domain.PhaseLobby,
			CurrentQuestionIndex: -1,
			AllowJoin:            true,
			CreatedAt:            now(),
		},
		questions:    qs,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[answerKey]domain.Answer),
		subscribers:  make(map[chan domain.Snapshot]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// JoinCode returns the human-entry code participants use to join.
func (s *Session) JoinCode() string {
	return s.joinCode
}

// CheckHostSecret validates the capability token required for host actions.
func (s *Session) CheckHostSecret(secret string) error {
	if secret != s.hostSecret {
		return domain.ErrNotHost
	}
	return nil
}

// Finished reports whether the session has reached its terminal phase.
func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Phase == domain.PhaseFinished
}

// Deserted reports whether no participant is still present.
func (s *Session) Deserted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.Present {
			return false
		}
	}
	return true
}

// Join admits a new participant. Admission is refused whenever AllowJoin is
// false, regardless of phase; the lobby phase alone does not guarantee entry.
func (s *Session) Join(participantID, name, avatar string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rec.AllowJoin {
		return domain.Participant{}, domain.ErrJoinClosed
	}

	p := &domain.Participant{
		ID:        participantID,
		Name:      name,
		Avatar:    avatar,
		Score:     0,
		JoinedAt:  s.now(),
		JoinOrder: s.joinSeq,
		Present:   true,
	}
	s.joinSeq++
	s.participants[participantID] = p
	s.broadcastLocked()
	return *p, nil
}

// Leave marks a participant absent. Participants are never deleted during a
// session, so their scores survive a dropped connection.
func (s *Session) Leave(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return
	}
	p.Present = false
	s.broadcastLocked()
}

// SetAllowJoin flips the admission gate. Legal in any phase.
func (s *Session) SetAllowJoin(secret string, allow bool) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.AllowJoin = allow
	s.broadcastLocked()
	return nil
}

// StartQuestion opens the answering window for the question at index. Legal
// from lobby (first question) and from scoreboard (replay or skip); any other
// phase yields ErrInvalidTransition, which callers treat as a no-op.
func (s *Session) StartQuestion(secret string, index int) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rec.Phase.CanTransitionTo(domain.PhaseQuestion) {
		return domain.ErrInvalidTransition
	}
	if len(s.questions) == 0 {
		return domain.ErrNoQuestions
	}
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionNotFound
	}
	s.startQuestionLocked(index)
	s.broadcastLocked()
	return nil
}

func (s *Session) startQuestionLocked(index int) {
	q := s.questions[index]
	s.rec.Phase = domain.PhaseQuestion
	s.rec.CurrentQuestionIndex = index
	s.rec.QuestionDurationSec = q.DurationSec
	s.rec.RevealAnswer = false
	s.rec.QuestionStartAt = s.now()
	s.rec.QuestionEndAt = time.Time{}
}

// CloseAnswering ends the answering window on explicit host signal. The
// authority never closes on a local timer; client countdowns are advisory.
func (s *Session) CloseAnswering(secret string) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Phase != domain.PhaseQuestion {
		return domain.ErrInvalidTransition
	}
	s.rec.QuestionEndAt = s.now()
	s.rec.Phase = domain.PhaseReview
	s.broadcastLocked()
	return nil
}

// SubmitAnswer records one answer for (participantID, current question).
// Submissions outside the answering phase or for a stale question index are
// dropped silently: the race between a client countdown and the host's close
// signal is expected, not an error. A resubmission before the window closes
// overwrites the previous answer (last write wins).
func (s *Session) SubmitAnswer(participantID string, questionIndex, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if s.rec.Phase != domain.PhaseQuestion || questionIndex != s.rec.CurrentQuestionIndex {
		return nil // late or out-of-phase, intentionally dropped
	}
	q := s.questions[questionIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return domain.ErrInvalidOption
	}

	key := answerKey{participantID: participantID, questionIndex: questionIndex}
	s.answers[key] = domain.Answer{
		ParticipantID: participantID,
		QuestionIndex: questionIndex,
		OptionIndex:   optionIndex,
		CreatedAt:     s.now(),
	}
	s.broadcastLocked()
	return nil
}

// ScoreCurrentQuestion runs the scoring transaction for the just-closed
// question: per-participant awards (best-of-one across duplicates), the
// fastest-correct marker, cumulative score updates for every participant,
// and the flip to the scoreboard phase, all in one critical section, so no
// reader observes a partially applied result. A second invocation finds the
// question already processed and leaves scores untouched, though it still
// moves to the scoreboard.
func (s *Session) ScoreCurrentQuestion(secret string) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Phase != domain.PhaseReview {
		return domain.ErrInvalidTransition
	}
	idx := s.rec.CurrentQuestionIndex
	if idx < 0 || idx >= len(s.questions) {
		return domain.ErrQuestionNotFound
	}
	q := &s.questions[idx]
	if !q.ProcessedAt.IsZero() {
		// Already scored (a replayed round or duplicate trigger): award
		// nothing, but still leave review, otherwise no host command could
		// ever move the session forward again.
		s.rec.RevealAnswer = true
		s.rec.Phase = domain.PhaseScoreboard
		s.broadcastLocked()
		return nil
	}

	awards, fastestID, fastestMs := s.computeAwardsLocked(*q)

	for _, p := range s.participants {
		gain := awards[p.ID] // zero for non-answerers and wrong answers
		p.Score += gain
		p.LastGain = gain
	}

	q.FastestParticipantID = fastestID
	if fastestID != "" {
		q.FastestElapsedMs = fastestMs
	}
	q.ProcessedAt = s.now()

	s.rec.RevealAnswer = true
	s.rec.Phase = domain.PhaseScoreboard
	s.broadcastLocked()
	return nil
}

// computeAwardsLocked is the pure read-compute half of the scoring
// transaction: a function of the current answer log and question only.
func (s *Session) computeAwardsLocked(q domain.Question) (map[string]int, string, int64) {
	// Stable ordering so the fastest-correct tie rule (strictly faster
	// replaces, equal keeps the first seen) is deterministic.
	ordered := make([]domain.Answer, 0, len(s.answers))
	for key, a := range s.answers {
		if key.questionIndex == q.Index {
			ordered = append(ordered, a)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ParticipantID < ordered[j].ParticipantID
	})

	awards := make(map[string]int, len(ordered))
	fastestID := ""
	var fastestMs int64
	for _, a := range ordered {
		correct := a.OptionIndex == q.CorrectIndex
		elapsed := a.CreatedAt.Sub(s.rec.QuestionStartAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		pts := domain.Points(correct, elapsed, q.DurationSec)
		// Duplicates cannot occur under the overwrite rule, but if one ever
		// did, keep the best single award rather than summing.
		if pts > awards[a.ParticipantID] {
			awards[a.ParticipantID] = pts
		}
		if correct && (fastestID == "" || elapsed < fastestMs) {
			fastestID = a.ParticipantID
			fastestMs = elapsed
		}
	}
	return awards, fastestID, fastestMs
}

// Advance moves from the scoreboard to the next question, or to finished
// when no questions remain.
func (s *Session) Advance(secret string) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Phase != domain.PhaseScoreboard {
		return domain.ErrInvalidTransition
	}
	next := s.rec.CurrentQuestionIndex + 1
	if next >= len(s.questions) {
		s.rec.Phase = domain.PhaseFinished
	} else {
		s.startQuestionLocked(next)
	}
	s.broadcastLocked()
	return nil
}

// UpdateQuestion replaces the question at index. Allowed only while that
// question's round has not started; once answering has begun the content is
// immutable so scoring is never computed against moved goalposts.
func (s *Session) UpdateQuestion(secret string, index int, q domain.Question) error {
	if err := s.CheckHostSecret(secret); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionNotFound
	}
	if s.rec.CurrentQuestionIndex >= index {
		return domain.ErrQuestionLocked
	}
	q.Index = index
	q.FastestParticipantID = ""
	q.FastestElapsedMs = 0
	q.ProcessedAt = time.Time{}
	s.questions[index] = q
	return nil
}

// Questions returns a copy of the deck for host views.
func (s *Session) Questions() []domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := make([]domain.Question, len(s.questions))
	copy(qs, s.questions)
	return qs
}

// Snapshot returns the current immutable view of the session.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots, primed with the current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	// Prime under the lock so no broadcast can slip in ahead of the initial
	// snapshot; the fresh buffered channel makes this send non-blocking.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow client never blocks a writer.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	participants := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, *p)
	}
	lb := domain.Leaderboard{
		SessionID: s.id,
		Entries:   domain.Rank(participants),
		UpdatedAt: s.now(),
	}

	snap := domain.Snapshot{
		Session:       s.rec,
		QuestionCount: len(s.questions),
		Leaderboard:   lb,
	}

	idx := s.rec.CurrentQuestionIndex
	if idx >= 0 && idx < len(s.questions) && s.rec.Phase != domain.PhaseFinished {
		q := s.questions[idx]
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		snap.Current = &domain.QuestionView{
			Index:                q.Index,
			Prompt:               q.Prompt,
			Options:              options,
			CorrectIndex:         q.CorrectIndex,
			DurationSec:          q.DurationSec,
			FastestParticipantID: q.FastestParticipantID,
			FastestElapsedMs:     q.FastestElapsedMs,
		}
		for key := range s.answers {
			if key.questionIndex == idx {
				snap.AnswersSubmitted++
			}
		}
	}

	if s.rec.Phase == domain.PhaseFinished {
		snap.Podium = lb.Podium()
	}
	return snap
}
