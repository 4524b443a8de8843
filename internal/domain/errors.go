package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started or was already ended.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionFinished is returned when a completed session is asked to load again.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrUserRequired is returned when a session is started without a learner.
	ErrUserRequired = errors.New("user id required")
	// ErrInvalidSetKey indicates a language/game/level triple that cannot name a question set.
	ErrInvalidSetKey = errors.New("invalid question set key")
	// ErrLoadFailed matches every failure of the question source or of the data it returned.
	ErrLoadFailed = errors.New("load question set failed")
	// ErrLoadSuperseded is returned by a load whose result was discarded because a newer load started.
	ErrLoadSuperseded = errors.New("load superseded by a newer request")
	// ErrMalformedQuestion indicates question data that breaks the variant invariants.
	ErrMalformedQuestion = errors.New("malformed question")
)
