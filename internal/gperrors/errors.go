// Package gperrors defines the structured error type shared across the
// pipeline. The error taxonomy drives propagation: validation errors are
// recovered locally (record dropped, run continues), everything rated
// critical aborts the run.
package gperrors

import (
	"fmt"
)

// Type categorizes an error.
type Type int

const (
	// TypeConfig - invalid or missing configuration, fatal before any graph work
	TypeConfig Type = iota
	// TypeValidation - malformed mined record, recoverable
	TypeValidation
	// TypeStorage - staging store failures
	TypeStorage
	// TypeNetwork - platform API connectivity issues
	TypeNetwork
	// TypeInternal - invariant violations such as dangling relation endpoints
	TypeInternal
	// TypeSecurity - missing pseudonymization key and the like
	TypeSecurity
)

func (t Type) String() string {
	switch t {
	case TypeConfig:
		return "CONFIG"
	case TypeValidation:
		return "VALIDATION"
	case TypeStorage:
		return "STORAGE"
	case TypeNetwork:
		return "NETWORK"
	case TypeInternal:
		return "INTERNAL"
	case TypeSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// Error is a typed error with an optional cause and context pairs.
type Error struct {
	Type    Type
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same type, so callers can branch on taxonomy
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal reports whether the error must abort the run. Only validation
// errors are recoverable.
func (e *Error) IsFatal() bool {
	return e.Type != TypeValidation
}

// WithContext attaches a context pair for diagnostics.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a typed error.
func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap wraps a cause with a typed error. Returns nil for a nil cause.
func Wrap(err error, t Type, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: message, Cause: err}
}

// Convenience constructors per taxonomy entry.

func Config(message string) *Error { return New(TypeConfig, message) }

func Configf(format string, args ...any) *Error {
	return New(TypeConfig, fmt.Sprintf(format, args...))
}

func Validation(message string) *Error { return New(TypeValidation, message) }

func Validationf(format string, args ...any) *Error {
	return New(TypeValidation, fmt.Sprintf(format, args...))
}

func Storage(err error, message string) *Error { return Wrap(err, TypeStorage, message) }

func Network(err error, message string) *Error { return Wrap(err, TypeNetwork, message) }

func Internal(message string) *Error { return New(TypeInternal, message) }

func Internalf(format string, args ...any) *Error {
	return New(TypeInternal, fmt.Sprintf(format, args...))
}

func Security(message string) *Error { return New(TypeSecurity, message) }

// IsFatal reports whether err must abort the run. Unknown error values are
// treated as fatal; only explicitly recoverable errors continue the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}
	return true
}

// GetType returns the taxonomy type of err, TypeInternal for foreign errors.
func GetType(err error) Type {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return TypeInternal
}
