package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a join code or session ID resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrJoinClosed is returned when a session is not accepting new participants.
	ErrJoinClosed = errors.New("joining is closed for this session")
	// ErrParticipantNotFound is returned when a submission names an unknown participant.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrNotHost is returned when a host action carries the wrong host secret.
	ErrNotHost = errors.New("host secret mismatch")
	// ErrInvalidTransition marks a lifecycle request that is illegal in the
	// current phase. Callers treat it as a no-op, not a hard failure.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrNoQuestions is returned when starting a session with an empty deck.
	ErrNoQuestions = errors.New("session has no questions")
	// ErrQuestionNotFound indicates a question index out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionLocked is returned when editing a question whose round has started.
	ErrQuestionLocked = errors.New("question is locked once its round has started")
	// ErrInvalidQuestion indicates question content that fails validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidOption indicates a submitted option index outside the question's options.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrDeckNotFound indicates the question bank could not be loaded.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrCodeInUse is returned by stores when a join code is already claimed
	// by a live session.
	ErrCodeInUse = errors.New("join code already in use")
)
