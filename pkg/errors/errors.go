// Package errors defines the sentinel errors shared across the merge
// pipeline and the query service, plus an AppError wrapper that carries an
// HTTP status code for the serving layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrRawIndexFormat  = errors.New("malformed raw index")
	ErrSnapshotMissing = errors.New("snapshot file missing")
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
	ErrNothingToMerge  = errors.New("no projects with a raw index")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// AppError wraps a sentinel error with a human message and HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf builds an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status code the handler should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
