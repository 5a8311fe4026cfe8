package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these.
var (
	// ErrValidation marks malformed or empty input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced quiz, question or attempt that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyAnswered marks a second submission for the same question in one attempt.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidState marks a lifecycle transition attempted from a terminal state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInfrastructure marks a store, cache, broker or transport failure.
	ErrInfrastructure = errors.New("infrastructure error")
)

var (
	ErrQuizNotFound       = fmt.Errorf("quiz %w", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("question %w", ErrNotFound)
	ErrAttemptNotFound    = fmt.Errorf("attempt %w", ErrNotFound)
	ErrConnectionNotFound = fmt.Errorf("connection %w", ErrNotFound)

	ErrAttemptNotInProgress = fmt.Errorf("attempt is not in progress: %w", ErrInvalidState)
	ErrAttemptExpired       = fmt.Errorf("attempt has expired: %w", ErrInvalidState)
)

// Invalid builds a validation error with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Infra wraps a collaborator failure so callers can match both the kind and the cause.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}

// ErrActiveAttemptExists is returned by stores when a second in-progress attempt
// for the same user and quiz would be created.
var ErrActiveAttemptExists = fmt.Errorf("active attempt already exists: %w", ErrInvalidState)
