package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationMessage is the top-level message for itemized input violations.
const ValidationMessage = "Validation error"

const internalMessage = "internal server error"

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
}

// ConflictError is returned when a write collides with a unique natural key.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %s already exists", e.Entity, e.Field, e.Value)
}

// ValidationError carries every violation found in a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return ValidationMessage
}

// NewValidationError builds a ValidationError from a list of violations.
func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message string, details ...string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Details:    details,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Message: e.Message,
		Details: e.Details,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognised
// becomes a 500 with a generic message.
func MapErrorToHTTP(err error) *HTTPError {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		httpErr       *HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		return NewHTTPError(http.StatusBadRequest, ValidationMessage, validationErr.Details...)
	case errors.As(err, &notFoundErr):
		return NewHTTPError(http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		return NewHTTPError(http.StatusConflict, conflictErr.Error())
	case errors.As(err, &httpErr):
		return httpErr
	default:
		return NewHTTPError(http.StatusInternalServerError, internalMessage)
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
