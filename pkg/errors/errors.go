package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrStoreUnavailable
	ErrIllegalTransition
	ErrCircuitOpen
	ErrTransientNetwork
	ErrIntegrity
	ErrPermanent
	ErrUnauthorized
	ErrInternal
)

// Kind returns the error code carried by err, or ErrInternal when err is not
// an AppError.
func Kind(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Kind(err) == code
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

// StoreUnavailable wraps a collaborator store failure. It is never retried at
// this layer and never mapped to a policy outcome.
func StoreUnavailable(store string, err error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: fmt.Sprintf("%s store unavailable", store),
		Err:     err,
	}
}

// IllegalTransition signals a workflow invariant violation, e.g. approving a
// request that already reached a terminal state.
func IllegalTransition(message string) *AppError {
	return &AppError{
		Code:    ErrIllegalTransition,
		Message: message,
	}
}

// CircuitOpen signals fail-fast rejection while an endpoint's breaker is
// open. No network attempt was made.
func CircuitOpen(endpoint string) *AppError {
	return &AppError{
		Code:    ErrCircuitOpen,
		Message: fmt.Sprintf("circuit open for endpoint %s", endpoint),
	}
}

// Transient wraps a network or timeout failure that may succeed on retry.
func Transient(message string, err error) *AppError {
	return &AppError{
		Code:    ErrTransientNetwork,
		Message: message,
		Err:     err,
	}
}

// Permanent wraps a business or protocol failure that retrying cannot fix.
func Permanent(message string, err error) *AppError {
	return &AppError{
		Code:    ErrPermanent,
		Message: message,
		Err:     err,
	}
}

// Integrity signals a digest mismatch on retrieved document bytes.
func Integrity(message string) *AppError {
	return &AppError{
		Code:    ErrIntegrity,
		Message: message,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: message,
		Err:     err,
	}
}
