package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrUpstream     = errors.New("upstream provider error")
	ErrInternal     = errors.New("internal error")
)

// AppError represents an application error with HTTP status and error code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewBadRequest creates a 400 error.
func NewBadRequest(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: http.StatusBadRequest, Err: ErrBadRequest}
}

// NewNotFound creates a 404 error.
func NewNotFound(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: http.StatusNotFound, Err: ErrNotFound}
}

// NewUpstream creates a 502 error wrapping a provider failure.
func NewUpstream(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: http.StatusBadGateway, Err: err}
}

// NewInternal creates a 500 error. The wrapped error is never serialized.
func NewInternal(err error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: "internal server error", StatusCode: http.StatusInternalServerError, Err: err}
}

// StatusOf returns the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
