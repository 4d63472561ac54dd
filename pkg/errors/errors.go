package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies of the predefined errors compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined errors
var (
	ErrNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
		Status:  http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:    "BAD_REQUEST",
		Message: "Invalid request",
		Status:  http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}

	ErrValidation = &AppError{
		Code:    "VALIDATION_ERROR",
		Message: "Validation failed",
		Status:  http.StatusBadRequest,
	}

	// ErrBackendUnavailable covers transport failures and non-2xx answers
	// from the screener backend.
	ErrBackendUnavailable = &AppError{
		Code:    "BACKEND_UNAVAILABLE",
		Message: "Screener backend unavailable",
		Status:  http.StatusBadGateway,
	}

	// ErrBackendRejected is an application-level failure reported by the
	// backend in a 2xx body (status "error" or a bare message).
	ErrBackendRejected = &AppError{
		Code:    "BACKEND_REJECTED",
		Message: "Screener backend rejected the request",
		Status:  http.StatusUnprocessableEntity,
	}
)

func NewError(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func WrapError(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Unavailable wraps a transport or HTTP status failure.
func Unavailable(err error, message string) *AppError {
	return WrapError(err, ErrBackendUnavailable.Code, message, ErrBackendUnavailable.Status)
}

// Rejected carries the backend's own message to the user.
func Rejected(message string) *AppError {
	if message == "" {
		message = ErrBackendRejected.Message
	}
	return NewError(ErrBackendRejected.Code, message, ErrBackendRejected.Status)
}

// As extracts an *AppError from err, falling back to ErrInternalServer.
func As(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return WrapError(err, ErrInternalServer.Code, ErrInternalServer.Message, ErrInternalServer.Status)
}

// ErrorResponse is a common error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
