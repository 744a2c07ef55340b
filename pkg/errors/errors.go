// Package errors defines the error taxonomy shared by the build pipeline and
// the query layer, and maps it onto HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound covers unknown document ids, including ids missing from a
	// particular artifact.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery is a malformed pattern query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidInput is any other rejected request parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataIntegrity marks a missing or inconsistent artifact, or metadata
	// that references absent content.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrIOFailure is content that could not be read at query time.
	ErrIOFailure = errors.New("io failure")
	ErrTimeout   = errors.New("operation timed out")
	ErrInternal  = errors.New("internal error")
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

// NotFoundf builds a 404 error around ErrNotFound.
func NotFoundf(format string, args ...any) *AppError {
	return Newf(ErrNotFound, http.StatusNotFound, format, args...)
}

// InvalidQueryf builds a 400 error around ErrInvalidQuery.
func InvalidQueryf(format string, args ...any) *AppError {
	return Newf(ErrInvalidQuery, http.StatusBadRequest, format, args...)
}

// InvalidInputf builds a 400 error around ErrInvalidInput.
func InvalidInputf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// DataIntegrityf builds a 500 error around ErrDataIntegrity.
func DataIntegrityf(format string, args ...any) *AppError {
	return Newf(ErrDataIntegrity, http.StatusInternalServerError, format, args...)
}

// IOFailure wraps a content read failure as a 500 error.
func IOFailure(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, fmt.Sprintf(format, args...), err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
