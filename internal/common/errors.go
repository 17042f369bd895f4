package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline and ledger outcomes.
var (
	// ErrNoTextExtracted means no preprocessing/recognition combination produced text.
	ErrNoTextExtracted = errors.New("no text extracted")
	// ErrNoFieldsResolved means text was recognized but none of the tracked fields matched.
	ErrNoFieldsResolved = errors.New("no fields resolved")
	// ErrAlreadyProcessed is returned when a processed marker for the filename already exists.
	ErrAlreadyProcessed = errors.New("file already processed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRejection reports whether err is a per-image outcome that leaves the file retryable
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoTextExtracted) ||
		errors.Is(err, ErrNoFieldsResolved) ||
		errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
