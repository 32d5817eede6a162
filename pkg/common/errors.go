package common

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers: it decides the HTTP status and
// whether a retry can succeed without changing the request.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindValidation   Kind = "VALIDATION"
	KindTimeout      Kind = "TIMEOUT"
	KindDependency   Kind = "DEPENDENCY"
	KindInternal     Kind = "INTERNAL"
)

// Common error sentinels
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrValidation = errors.New("validation error")
	ErrTimeout    = errors.New("deadline exceeded")
	ErrDependency = errors.New("dependency unavailable")
	ErrInternal   = errors.New("internal error")
)

// AppError represents an application error with its taxonomy kind and the
// HTTP status code it maps to.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry the same request. Conflicts
// are retryable once the client has a path to resolve the precondition;
// timeouts and dependency failures are retryable with backoff.
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindConflict, KindTimeout, KindDependency:
		return true
	}
	return false
}

func statusForKind(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError of an arbitrary kind
func NewAppError(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    statusForKind(kind),
		Message: message,
		Err:     err,
	}
}

// Taxonomy constructors

func NewInvalidInputError(message string, err error) *AppError {
	return NewAppError(KindInvalidInput, message, err)
}

func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return NewAppError(KindNotFound, message, err)
}

func NewConflictError(message string) *AppError {
	return NewAppError(KindConflict, message, ErrConflict)
}

func NewValidationError(message string) *AppError {
	return NewAppError(KindValidation, message, ErrValidation)
}

func NewTimeoutError(message string, err error) *AppError {
	if err == nil {
		err = ErrTimeout
	}
	return NewAppError(KindTimeout, message, err)
}

func NewDependencyError(message string, err error) *AppError {
	if err == nil {
		err = ErrDependency
	}
	return NewAppError(KindDependency, message, err)
}

func NewInternalError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternal
	}
	return NewAppError(KindInternal, message, err)
}

// AsAppError unwraps err to an *AppError when one is in the chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, defaulting to Internal for
// unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given taxonomy kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
