package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// invalid wraps ErrInvalidInput with a message the caller can show.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ModelOutputError is a model answer that could not be used.
type ModelOutputError struct {
	Prompt string
	Raw    string
	Err    error
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("%s: unusable model output: %v", e.Prompt, e.Err)
}

func (e *ModelOutputError) Unwrap() error { return e.Err }
