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

// Pipeline error taxonomy. Fatal errors abort a document's processing and mark
// it FAILED; the rest are control-flow branches handled at their boundary.
var (
	ErrNormalization        = errors.New("media normalization failed")
	ErrRecognitionExhausted = errors.New("all recognition engines exhausted")
	ErrSchemaViolation      = errors.New("extraction schema violation")
	ErrDuplicateSubmission  = errors.New("duplicate submission")
	ErrAssignmentConflict   = errors.New("review item already assigned")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsFatal reports whether an error aborts the document's pipeline run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNormalization) ||
		errors.Is(err, ErrRecognitionExhausted) ||
		errors.Is(err, ErrSchemaViolation)
}
