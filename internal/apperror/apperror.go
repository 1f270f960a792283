// Package apperror defines the error taxonomy shared by the session components.
package apperror

import (
	"errors"
	"fmt"
)

// ErrNoActiveDeck is reported when a mutation names no deck and nothing is focused.
// Callers treat it as "nothing to do" rather than a failure.
var ErrNoActiveDeck = errors.New("no deck selected")

// ValidationError rejects input before any request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid returns a ValidationError for field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AppError is the user-facing form of a failure.
type AppError struct {
	Message string `json:"message"`
	Op      string `json:"op"`
	Err     error  `json:"-"` // Wrapped error for errors.Is/As chain
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap builds an AppError for op, keeping err in the chain.
func Wrap(op string, err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Message: fmt.Sprintf("%s failed: %v", op, err),
		Op:      op,
		Err:     err,
	}
}
