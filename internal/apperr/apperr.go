package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that a referenced attempt does not exist for the given
// user. Wrapped with the attempt id at the call site.
var ErrNotFound = errors.New("not found")

// ValidationError is a client-fault input error (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MethodNotAllowedError names the method(s) an action accepts (HTTP 405).
type MethodNotAllowedError struct {
	Allowed string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("Method Not Allowed. Use %s.", e.Allowed)
}

// ServiceUnavailableError signals an uninitialized dependency (HTTP 503).
type ServiceUnavailableError struct {
	Service string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable.", e.Service)
}

// GradingErrorKind distinguishes grading failure sub-cases in logs even
// though they collapse to one HTTP status.
type GradingErrorKind string

const (
	GradingTransport GradingErrorKind = "transport"
	GradingBadJSON   GradingErrorKind = "bad_json"
	GradingBadSchema GradingErrorKind = "bad_schema"
)

// GradingError is a failure of the grading backend call: the transport
// failed, the model returned unparseable text, or the parsed object did not
// match the mandated schema.
type GradingError struct {
	Kind GradingErrorKind
	Err  error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grading failed (%s): %v", e.Kind, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

func NewGrading(kind GradingErrorKind, err error) *GradingError {
	return &GradingError{Kind: kind, Err: err}
}

// OutlineError is a failure of outline generation. Kept distinct from
// GradingError so callers never present an outline failure as a grading one.
type OutlineError struct {
	Err error
}

func (e *OutlineError) Error() string { return fmt.Sprintf("outline generation failed: %v", e.Err) }
func (e *OutlineError) Unwrap() error { return e.Err }

// PersistenceError is a store read/write/delete failure (HTTP 500).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store %s failed: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
