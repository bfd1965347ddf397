package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a PIN maps to no live session.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrInvalidState is returned when an operation is not valid for the session's status.
	ErrInvalidState = errors.New("operation invalid for session state")
	// ErrUnknownParticipant is returned when a user acts on a session they never joined.
	ErrUnknownParticipant = errors.New("participant not found in session")
	// ErrDuplicateAnswer is returned on a second submission for the same question.
	ErrDuplicateAnswer = errors.New("answer already recorded for question")
	// ErrWindowClosed is returned when a submission misses the answer window.
	ErrWindowClosed = errors.New("answer window closed")
	// ErrNotAuthorized is returned when a non-host attempts a host-only action.
	ErrNotAuthorized = errors.New("not the session host")
	// ErrPinExhausted is returned when PIN allocation gives up after too many collisions.
	ErrPinExhausted = errors.New("pin allocation retries exhausted")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
