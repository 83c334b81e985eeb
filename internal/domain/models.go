package domain

import (
	"fmt"
	"time"
)

// Session is the durable record for one running quiz instance. The state
// machine in internal/app is the only writer of Phase, CurrentQuestionIndex
// and the timing marks.
type Session struct {
	ID                   string    `json:"id"`
	JoinCode             string    `json:"joinCode"`
	HostName             string    `json:"hostName"`
	Phase                Phase     `json:"phase"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"` // -1 before start
	QuestionStartAt      time.Time `json:"questionStartAt"`      // zero when no question is open
	QuestionEndAt        time.Time `json:"questionEndAt"`
	QuestionDurationSec  int       `json:"questionDurationSec"` // snapshot of the active question's duration
	RevealAnswer         bool      `json:"revealAnswer"`
	AllowJoin            bool      `json:"allowJoin"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Question models an MCQ question with one correct option. Once the round
// that uses it has started, the question is immutable; scoring fills in the
// Fastest* fields and stamps ProcessedAt.
type Question struct {
	Index        int      `json:"index"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	DurationSec  int      `json:"durationSec"`

	// Set by scoring. FastestElapsedMs is meaningful only when
	// FastestParticipantID is non-empty; ProcessedAt is zero until scored.
	FastestParticipantID string    `json:"fastestParticipantId,omitempty"`
	FastestElapsedMs     int64     `json:"fastestElapsedMs,omitempty"`
	ProcessedAt          time.Time `json:"processedAt,omitempty"`
}

// Validate checks the authoring invariants for a question.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidQuestion, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
	}
	if q.DurationSec <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidQuestion, q.DurationSec)
	}
	return nil
}

// Deck is an ordered set of questions played front to back.
type Deck struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Participant is one joined player. Score is cumulative and never decreases;
// LastGain is the award from the most recently scored question.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Score     int       `json:"score"`
	LastGain  int       `json:"lastGain"`
	JoinedAt  time.Time `json:"joinedAt"`
	JoinOrder int       `json:"-"`
	Present   bool      `json:"present"`
}

// Answer is one submission, keyed by (participant, question) so a
// resubmission overwrites rather than duplicates. CreatedAt is assigned by
// the session clock, never by the client.
type Answer struct {
	ParticipantID string    `json:"participantId"`
	QuestionIndex int       `json:"questionIndex"`
	OptionIndex   int       `json:"optionIndex"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuestionView is the client-facing shape of the active question.
// CorrectIndex is -1 in player snapshots until the answer is revealed.
type QuestionView struct {
	Index                int      `json:"index"`
	Prompt               string   `json:"prompt"`
	Options              []string `json:"options"`
	CorrectIndex         int      `json:"correctIndex"`
	DurationSec          int      `json:"durationSec"`
	FastestParticipantID string   `json:"fastestParticipantId,omitempty"`
	FastestElapsedMs     int64    `json:"fastestElapsedMs,omitempty"`
}

// Snapshot is an immutable view of a session published to subscribers on
// every change. Concurrent readers never observe a half-applied update.
type Snapshot struct {
	Session          Session            `json:"session"`
	QuestionCount    int                `json:"questionCount"`
	Current          *QuestionView      `json:"current,omitempty"`
	AnswersSubmitted int                `json:"answersSubmitted"`
	Leaderboard      Leaderboard        `json:"leaderboard"`
	Podium           []LeaderboardEntry `json:"podium,omitempty"`
}
