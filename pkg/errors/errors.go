// Package errors defines the platform's sentinel errors and an AppError type
// that carries an HTTP status alongside a wrapped sentinel.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrBackendUnavailable = errors.New("recognition backend unavailable")
	ErrExtractionFailed   = errors.New("entity extraction failed")
	ErrRebuildRequired    = errors.New("index snapshot unusable, rebuild required")
	ErrSnapshotCorrupt    = errors.New("snapshot corrupt")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrIncompleteIndex    = errors.New("index build incomplete")
	ErrIndexNotLoaded     = errors.New("index not loaded")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

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

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// RebuildRequired wraps cause so that it matches both ErrRebuildRequired and
// the original error.
func RebuildRequired(cause error) error {
	return fmt.Errorf("%w: %w", ErrRebuildRequired, cause)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRebuildRequired), errors.Is(err, ErrIndexNotLoaded),
		errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrIncompleteIndex):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
