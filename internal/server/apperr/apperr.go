// Package apperr defines the error taxonomy shared by the services, the
// project guard and both transports. An *Error carries a machine-readable
// kind, a status hint, a public message and an internal debug string that
// must never reach the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	AuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	AuthorizationFailed  Kind = "AUTHORIZATION_FAILED"
	UserDoesNotExist     Kind = "USER_DOES_NOT_EXIST"
	ProjectDoesNotExist  Kind = "PROJECT_DOES_NOT_EXIST"
	MissingProperty      Kind = "MISSING_PROPERTY_ERROR"
	ValidationError      Kind = "VALIDATION_ERROR"
	Internal             Kind = "INTERNAL_ERROR"
)

type Error struct {
	Name    Kind
	Status  int
	Message string
	Debug   string
	Err     error
}

func (e *Error) Error() string {
	if e.Debug != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Name, e.Message, e.Debug)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause attaches an underlying error and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func New(kind Kind, status int, message, debug string) *Error {
	return &Error{Name: kind, Status: status, Message: message, Debug: debug}
}

func Unauthenticated(message, debug string) *Error {
	return New(AuthenticationFailed, http.StatusUnauthorized, message, debug)
}

func Unauthorized(message, debug string) *Error {
	return New(AuthorizationFailed, http.StatusUnauthorized, message, debug)
}

func NoSuchUser(message, debug string) *Error {
	return New(UserDoesNotExist, http.StatusBadRequest, message, debug)
}

func NoSuchProject(message, debug string) *Error {
	return New(ProjectDoesNotExist, http.StatusNotFound, message, debug)
}

func Missing(message, debug string) *Error {
	return New(MissingProperty, http.StatusBadRequest, message, debug)
}

func Invalid(message, debug string) *Error {
	return New(ValidationError, http.StatusBadRequest, message, debug)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Name == kind
}

// From converts any error into an *Error. Errors outside the taxonomy
// become a 500 whose public message hides the cause.
func From(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	return &Error{
		Name:    Internal,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Debug:   err.Error(),
		Err:     err,
	}
}
