package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the flowgate library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that a bounded wait expired before admission
	// or condition satisfaction
	ErrTimeout = errors.New("operation timed out")

	// ErrCapacityExceeded indicates that admission was denied because a
	// capacity limit was reached
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrBroken indicates that a barrier is in the broken state and cannot
	// be awaited until it is reset
	ErrBroken = errors.New("barrier is broken")

	// ErrUnderflow indicates a countdown below zero on an already
	// satisfied latch
	ErrUnderflow = errors.New("count already at zero")

	// ErrCancelled indicates that an admitted but not yet executed item
	// was evicted before it could run
	ErrCancelled = errors.New("item cancelled before execution")
)

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCapacityExceeded)
}

// IsTerminal returns true if the error indicates a programming error or a
// terminal controller state rather than a transient condition
func IsTerminal(err error) bool {
	return errors.Is(err, ErrBroken) || errors.Is(err, ErrUnderflow) ||
		errors.Is(err, ErrInvalidConfiguration)
}

// ValidationError describes a constructor-time configuration failure.
// It unwraps to ErrInvalidConfiguration so callers can match the whole
// class with errors.Is.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a usage hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap returns ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError describes a runtime operation failure with its originating
// module and operation name.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError wrapping cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}
