package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to pick a response.
type Kind int

const (
	// KindInternal is the default for anything unclassified.
	KindInternal Kind = iota
	// KindInvalid means the client input was malformed.
	KindInvalid
	// KindNotFound means no matching resource exists.
	KindNotFound
	// KindConstraintViolation means the store rejected a write.
	KindConstraintViolation
	// KindTransient means the pool or database was unavailable or timed out.
	KindTransient
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConstraintViolation:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kinder is implemented by every error type in this package.
type Kinder interface {
	Kind() Kind
}

// KindOf walks the wrap chain of err and returns the first kind found.
// Errors that carry no kind are reported as KindInternal.
func KindOf(err error) Kind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Kind implements Kinder.
func (e *ValidationError) Kind() Kind { return KindInvalid }

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Kind implements Kinder.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// ConstraintViolationError is returned when the store rejects a write,
// for example on a unique index.
type ConstraintViolationError struct {
	Resource string
	Message  string
	Err      error
}

// NewConstraintViolationError creates a new constraint violation error
func NewConstraintViolationError(resource, message string, err error) *ConstraintViolationError {
	return &ConstraintViolationError{
		Resource: resource,
		Message:  message,
		Err:      err,
	}
}

// Error implements the error interface
func (e *ConstraintViolationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s violates a store constraint", e.Resource)
}

// Unwrap returns the wrapped error
func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// Kind implements Kinder.
func (e *ConstraintViolationError) Kind() Kind { return KindConstraintViolation }

// TransientError signals that the database or its pool could not serve the
// request right now. Message is safe to show to clients; Err is not.
type TransientError struct {
	Message string
	Err     error
}

// NewTransientError creates a new transient error
func NewTransientError(message string, err error) *TransientError {
	return &TransientError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Kind implements Kinder.
func (e *TransientError) Kind() Kind { return KindTransient }

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// Kind implements Kinder.
func (e *InternalError) Kind() Kind { return KindInternal }

// PublicMessage returns the text that may be sent to a client for err.
// Internal details never leave the process.
func PublicMessage(err error) string {
	var transient *TransientError
	switch KindOf(err) {
	case KindInternal:
		return "internal server error"
	case KindTransient:
		if errors.As(err, &transient) {
			return transient.Message
		}
		return "service unavailable"
	default:
		var k Kinder
		if errors.As(err, &k) {
			if e, ok := k.(error); ok {
				return e.Error()
			}
		}
		return err.Error()
	}
}
