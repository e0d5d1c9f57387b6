// Package apperr provides the error code taxonomy shared across the data
// layer. Codes survive wrapping, so callers can branch on the category of a
// failure without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure.
type ErrorCode string

const (
	// Setup and input errors
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Local store errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync errors
	ErrSyncFailed  ErrorCode = "SYNC_FAILED"
	ErrSyncTimeout ErrorCode = "SYNC_TIMEOUT"
	ErrRemote      ErrorCode = "REMOTE_ERROR"
)

// AppError carries a code alongside the message and cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether err, or any error it wraps, carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
