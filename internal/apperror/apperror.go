// Package apperror defines the application error taxonomy. Handlers map
// these onto HTTP status codes in one place instead of deciding codes at
// every call site.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the type of application error
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// ValidationError represents missing or malformed input
	ValidationError
	// NotFoundError represents a resource not found error
	NotFoundError
	// OwnershipError means the caller does not own the target resource
	OwnershipError
	// StorageError represents an error originating from persistence
	StorageError
	// PolicyError represents a domain policy rejection (password rules,
	// minimum age, federated-account conflicts)
	PolicyError
	// AuthError represents an authentication failure
	AuthError
)

// String returns the metric label for the error type
func (t ErrorType) String() string {
	switch t {
	case ValidationError:
		return "validation"
	case NotFoundError:
		return "not_found"
	case OwnershipError:
		return "ownership"
	case StorageError:
		return "storage"
	case PolicyError:
		return "policy"
	case AuthError:
		return "auth"
	default:
		return "unknown"
	}
}

// AppError is the error type used across services. It wraps an optional
// underlying error for debugging while keeping a client-safe message.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code appropriate for the error type
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ValidationError, PolicyError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case OwnershipError:
		return http.StatusForbidden
	case AuthError:
		return http.StatusUnauthorized
	case StorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(errType ErrorType, message string, underlying error) *AppError {
	return &AppError{Type: errType, Message: message, Err: underlying}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ValidationError, Message: message}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: NotFoundError, Message: message}
}

// NewOwnershipError creates an ownership error
func NewOwnershipError(message string) *AppError {
	return &AppError{Type: OwnershipError, Message: message}
}

// NewStorageError creates a storage error wrapping the persistence failure
func NewStorageError(message string, err error) *AppError {
	return &AppError{Type: StorageError, Message: message, Err: err}
}

// NewPolicyError creates a policy error
func NewPolicyError(message string) *AppError {
	return &AppError{Type: PolicyError, Message: message}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *AppError {
	return &AppError{Type: AuthError, Message: message}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}
