package apperrors

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrImmutable  = errors.New("immutable")
)

// Kind is the stable machine-readable category of an Error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInfeasible        Kind = "infeasible"
	KindUnbounded         Kind = "unbounded"
	KindIntegrationFailed Kind = "integration_failed"
	KindUsage             Kind = "usage_error"
	KindConflict          Kind = "conflict"
	KindImmutable         Kind = "immutable"
	KindSolver            Kind = "solver_error"
)

// Error is a domain error carrying a kind and a human-readable suggestion.
// Tool handlers render it as a structured error result instead of a protocol error.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	// Available lists the ids a caller could have meant (not_found only).
	Available []string
	Details   map[string]any

	retryable bool
	err       error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, or the sentinel matching the kind.
func (e *Error) Unwrap() error {
	if e.err != nil {
		return e.err
	}
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	case KindImmutable:
		return ErrImmutable
	}
	return nil
}

// IsRetryable reports whether retrying the same call may succeed.
// Only collisions on generated identifiers are retryable.
func (e *Error) IsRetryable() bool {
	return e.retryable
}

// WithDetail returns e with an extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion returns e with its suggestion replaced.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing resource and the ids that do exist.
func NotFound(resource, id string, available []string) *Error {
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return &Error{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s %q not found", resource, id),
		Suggestion: fmt.Sprintf("use one of the available %s ids", resource),
		Available:  sorted,
	}
}

func Infeasible(message string) *Error {
	return &Error{
		Kind:       KindInfeasible,
		Message:    message,
		Suggestion: "no flux distribution satisfies the constraints; gapfill the model on this medium, then retry",
	}
}

func Unbounded(message string) *Error {
	return &Error{
		Kind:       KindUnbounded,
		Message:    message,
		Suggestion: "the objective can grow without limit; inspect exchange bounds or rebuild the model (gapfilling will not fix this)",
	}
}

func IntegrationFailed(unresolved []string) *Error {
	return &Error{
		Kind:       KindIntegrationFailed,
		Message:    fmt.Sprintf("none of the %d candidate reactions could be resolved in the template", len(unresolved)),
		Suggestion: "check that the model and the gapfilling template use the same reaction namespace",
		Details:    map[string]any{"unresolved": unresolved},
	}
}

func Usage(message, suggestion string) *Error {
	return &Error{Kind: KindUsage, Message: message, Suggestion: suggestion}
}

// Conflict reports an id that is already taken. Retryable conflicts come from
// generated ids, where a fresh token resolves the collision.
func Conflict(message string, retryable bool) *Error {
	return &Error{
		Kind:       KindConflict,
		Message:    message,
		Suggestion: "choose a different name or delete the existing entry first",
		retryable:  retryable,
	}
}

func Immutable(message string) *Error {
	return &Error{Kind: KindImmutable, Message: message, Suggestion: "predefined entries cannot be modified or deleted"}
}

// Solver wraps an unexpected optimization engine failure.
func Solver(message string, err error) *Error {
	return &Error{Kind: KindSolver, Message: message, err: err}
}
