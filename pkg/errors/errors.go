package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is an AppError of the same kind. Copies produced by
// WithInternal or WithMessage keep matching their originating sentinel.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// Membership workflow taxonomy.
var (
	// ErrNotAuthorized is returned when the caller lacks an approved ADMIN membership.
	ErrNotAuthorized = &AppError{
		Code:       "NOT_AUTHORIZED",
		Message:    "Only approved organization administrators can perform this action",
		StatusCode: http.StatusForbidden,
	}

	// ErrLastAdmin rejects mutations that would leave an organization without an approved ADMIN.
	ErrLastAdmin = &AppError{
		Code:       "LAST_ADMIN",
		Message:    "An organization must keep at least one approved administrator",
		StatusCode: http.StatusConflict,
	}

	// ErrInvalidState signals an invitation that is not in the state the transition requires.
	ErrInvalidState = &AppError{
		Code:       "INVALID_STATE",
		Message:    "Invitation is no longer pending",
		StatusCode: http.StatusConflict,
	}

	// ErrEmailMismatch signals a redeeming account whose email differs from the invitation.
	ErrEmailMismatch = &AppError{
		Code:       "EMAIL_MISMATCH",
		Message:    "Signed in account does not match the invitation email",
		StatusCode: http.StatusForbidden,
	}

	// ErrDataAccess wraps failures of the underlying store.
	ErrDataAccess = &AppError{
		Code:       "DATA_ACCESS",
		Message:    "Data store operation failed",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// DataAccess wraps a store failure into ErrDataAccess, keeping the cause for logs.
func DataAccess(err error) *AppError {
	return ErrDataAccess.WithInternal(err)
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
