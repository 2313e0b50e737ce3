package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrPermission   = errors.New("permission denied")
	ErrUnauthorized = errors.New("unauthorized")
	ErrReauth       = errors.New("re-authentication failed")
)

type AppError struct {
	Err     error  // sentinel from the list above
	Message string // shown to the user as is
	Field   string // optional, set for validation errors
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

func PermissionDenied(message string) *AppError {
	return &AppError{Err: ErrPermission, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

// Reauth is returned when a sensitive profile change could not be confirmed
// with the user's current password.
func Reauth(message string) *AppError {
	return &AppError{Err: ErrReauth, Message: message}
}
