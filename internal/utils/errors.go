// internal/utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
)

// AppError is a typed failure carrying an HTTP status hint for the boundary
// layer. Services return these; handlers translate them with RespondError.
type AppError struct {
	Code    string
	Status  int
	Message string
	Details interface{}
}

func (e *AppError) Error() string {
	return e.Message
}

func NotFoundError(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: resource + " not found",
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidState,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

func ValidationFailed(message string, details interface{}) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Status:  http.StatusBadRequest,
		Message: message,
		Details: details,
	}
}

func ConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Status:  http.StatusConflict,
		Message: message,
	}
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Message: message,
	}
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return &AppError{
		Code:    CodeForbidden,
		Status:  http.StatusForbidden,
		Message: message,
	}
}

// AsAppError unwraps err to an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
