// Package errors provides error code definitions for the ShopLedger sync core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync errors
	ErrNotConfigured    ErrorCode = "SYNC_NOT_CONFIGURED"
	ErrNotAuthenticated ErrorCode = "SYNC_NOT_AUTHENTICATED"
	ErrNetwork          ErrorCode = "SYNC_NETWORK_ERROR"
	ErrTimeout          ErrorCode = "SYNC_TIMEOUT"
	ErrRemote           ErrorCode = "SYNC_REMOTE_REJECTED"
	ErrStale            ErrorCode = "SYNC_STALE_PUSH"
	ErrSyncInProgress   ErrorCode = "SYNC_IN_PROGRESS"
)

// AppError represents an application error with code and message.
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

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error, or ErrInternal if it has none.
func Code(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Retryable reports whether an error is transient and worth retrying.
// Configuration and validation failures are permanent; connectivity
// loss, timeouts and remote 5xx responses clear on their own.
func Retryable(err error) bool {
	switch Code(err) {
	case ErrNetwork, ErrTimeout:
		return true
	default:
		return false
	}
}
