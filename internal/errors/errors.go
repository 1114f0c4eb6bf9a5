// Package errors provides custom error types for the tax engine and its API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// Wrapf wraps an internal error and replaces the message with a formatted one
// carrying the context (ticker, date, year) needed to diagnose it.
func Wrapf(sentinel *AppError, internal error, format string, args ...any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// Is reports whether err is an AppError carrying the same code as target.
func Is(err error, target *AppError) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == target.Code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Annotate prefixes the message of an AppError with context while keeping
// its code and status. Other errors are wrapped as internal errors.
func Annotate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:       appErr.Code,
			Message:    prefix + ": " + appErr.Message,
			StatusCode: appErr.StatusCode,
			Internal:   appErr.Internal,
		}
	}
	return Wrapf(ErrInternalServer, err, "%s", prefix)
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Exchange rate errors.
var (
	ErrRateUnavailable     = &AppError{Code: "RATE_UNAVAILABLE", Message: "No usable exchange rate for the requested date", StatusCode: http.StatusUnprocessableEntity}
	ErrUnsupportedCurrency = &AppError{Code: "UNSUPPORTED_CURRENCY", Message: "Only USD and DKK amounts are supported", StatusCode: http.StatusBadRequest}
)

// Ledger errors.
var (
	ErrInsufficientShares = &AppError{Code: "INSUFFICIENT_SHARES", Message: "Insufficient shares for this sale", StatusCode: http.StatusUnprocessableEntity}
	ErrComputation        = &AppError{Code: "COMPUTATION_ERROR", Message: "Cost-basis computation violated an invariant", StatusCode: http.StatusInternalServerError}
)

// Report and configuration errors.
var (
	ErrInvalidYear   = &AppError{Code: "INVALID_YEAR", Message: "Unsupported tax year", StatusCode: http.StatusBadRequest}
	ErrInvalidMethod = &AppError{Code: "INVALID_METHOD", Message: "Unknown cost-basis method", StatusCode: http.StatusBadRequest}
)
