package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Turn failure taxonomy. These sentinels classify everything that can go
// wrong between a batch of inbound messages and the final reply, so the
// orchestrator can decide between retrying, apologising and re-queuing.
var (
	// ErrTransientBackend marks a network/5xx failure from a generation
	// backend. Retried with fixed backoff.
	ErrTransientBackend = errors.New("transient backend error")

	// ErrEmptyResult marks a backend response that carried no usable
	// content. Retried with the same budget as transient failures.
	ErrEmptyResult = errors.New("backend returned empty result")

	// ErrExhaustedRetries is terminal: the retry budget is spent. The user
	// gets an apology and no credits are debited.
	ErrExhaustedRetries = errors.New("retry budget exhausted")

	// ErrInsufficientCredits aborts a turn before dispatch; the user is
	// shown their balance instead of a reply.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrCatalogUnavailable means the asset catalog could not be refreshed
	// and no previous snapshot exists to fall back to.
	ErrCatalogUnavailable = errors.New("asset catalog unavailable")
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError converts any error into an AppError, defaulting to a 500
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalServerError("SERVER_ERROR", err.Error())
}
