// Package apperror defines the error kinds the bot distinguishes between.
//
// Every failure a handler can observe falls into one of these buckets:
//
//	ErrNotFound   → unknown or malformed snippet id  → "Invalid or expired link."
//	ErrForbidden  → caller is not an admin           → per-command rejection reply
//	ErrValidation → command did not parse/validate   → usage reply
//	anything else → store or gateway failure         → logged / HTTP 500 in webhook mode
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message, safe to show in chat
	Field   string // Optional: field causing the error
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
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// The dispatcher maps this to the command's rejection reply.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UserMessage returns the chat-safe message carried by err, or fallback if err
// is not an *AppError. Raw store and gateway errors never reach the chat.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
