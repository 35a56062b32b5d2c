package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is checks. The typed errors below match them.
var (
	ErrValidation   = stderrors.New("validation failed")
	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
	ErrNotFound     = stderrors.New("not found")
	ErrConflict     = stderrors.New("conflict")
	ErrRemote       = stderrors.New("remote failure")
)

// ValidationError is raised before any network call when required input is missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthError covers missing, invalid or insufficient credentials.
type AuthError struct {
	Message   string
	Forbidden bool
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "Unauthorized"
	}
	return e.Message
}

func (e *AuthError) Is(target error) bool {
	if target == ErrUnauthorized {
		return true
	}
	return e.Forbidden && target == ErrForbidden
}

// NotFoundError reports that the store matched no row.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteError wraps any other store or provider failure.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("remote error (%d): %s", e.Status, e.Message)
	case e.Message != "":
		return "remote error: " + e.Message
	case e.Err != nil:
		return "remote error: " + e.Err.Error()
	default:
		return fmt.Sprintf("remote error (%d)", e.Status)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	return target == ErrConflict && e.Status == http.StatusConflict
}

// Retryable reports whether another attempt could succeed.
func (e *RemoteError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func Conflict(message string) error {
	return &RemoteError{Status: http.StatusConflict, Message: message}
}

func Forbidden(message string) error {
	return &AuthError{Message: message, Forbidden: true}
}

// Status maps an error from the taxonomy to an HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest, ErrCodeInvalidInput
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case stderrors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// As is a generic errors.As.
func As[T error](err error) (T, bool) {
	var target T
	ok := stderrors.As(err, &target)
	return target, ok
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func New(text string) error { return stderrors.New(text) }
