// Package apperror defines the error taxonomy shared by the store, service and
// HTTP layers.
//
// Every failure a caller can act on is an *AppError wrapping one of the
// sentinels below. Callers branch with errors.Is(err, apperror.ErrXxx); the
// handler layer is the only place that turns a sentinel into a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reused or expired")
	ErrInternal           = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel (possibly joined with a cause for internal errors)
	Message string // Human-readable error message
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

// Conflict is returned when a unique field (username, email) is already taken.
func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
	}
}

// Unauthorized means no credential was presented at all.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials always carries the same message, whichever half of the
// identifier/password pair was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "invalid user credentials",
	}
}

// IncorrectPassword is InvalidCredentials for a caller who is already
// authenticated (change password). It also matches ErrValidation, which the
// handler checks first, so it is reported as 400 rather than 401.
func IncorrectPassword(field string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrValidation, ErrInvalidCredentials),
		Message: "invalid old password",
		Field:   field,
	}
}

func InvalidToken(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidToken,
		Message: message,
	}
}

// TokenReuse is returned when a refresh token verifies but is no longer the
// one stored for its user.
func TokenReuse() *AppError {
	return &AppError{
		Err:     ErrTokenReuse,
		Message: "refresh token is expired or already used",
	}
}

// Internal wraps a failure that is not the caller's fault. The cause stays in
// the chain for logging; Message is what clients see.
func Internal(message string, cause error) *AppError {
	err := ErrInternal
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrInternal, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}
