// Package apperrors defines the error taxonomy shared by services and HTTP
// handlers, and maps each category to a status code and JSON body.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the category of an error, used for status mapping and metrics labels.
type Type string

const (
	TypeValidation   Type = "validation"
	TypeUnauthorized Type = "unauthorized"
	TypeForbidden    Type = "forbidden"
	TypeNotFound     Type = "not_found"
	TypeConflict     Type = "conflict"
	TypeRateLimited  Type = "rate_limited"
	TypeInternal     Type = "internal"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a categorized error carrying a client-facing message.
type Error struct {
	Type    Type
	Message string
	Cause   error
	Details []FieldError
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for the error's type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithField appends a field-level validation detail (chainable).
func (e *Error) WithField(field, message string) *Error {
	e.Details = append(e.Details, FieldError{Field: field, Message: message})
	return e
}

func Validation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Type: TypeConflict, Message: message}
}

func RateLimited(message string) *Error {
	return &Error{Type: TypeRateLimited, Message: message}
}

// Internal wraps an unexpected failure. The cause is logged, never sent to clients.
func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// Response is the JSON body written for failed requests.
type Response struct {
	Error  string       `json:"error"`
	Type   Type         `json:"type"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ToResponse converts the error to its client-facing body.
func (e *Error) ToResponse() Response {
	return Response{
		Error:  e.Message,
		Type:   e.Type,
		Errors: e.Details,
	}
}

// AsStructuredError converts any error into an *Error.
// Errors that are not already structured become internal errors.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return Internal("Internal server error", err)
}

// IsType reports whether err is a structured error of the given type.
func IsType(err error, t Type) bool {
	var structured *Error
	return errors.As(err, &structured) && structured.Type == t
}
