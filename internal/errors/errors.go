// Package errors provides the structured error taxonomy for annostore.
//
// Every public store, index, and engine operation fails with one of three
// kinds: validation (structurally invalid annotation), not-found (operation
// on an unknown id), or conflict (duplicate id on create). Anything else is
// an internal error wrapping the underlying cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a store error.
type Kind string

const (
	// KindValidation indicates a structurally invalid annotation.
	KindValidation Kind = "VALIDATION"
	// KindNotFound indicates an operation on an unknown id.
	KindNotFound Kind = "NOT_FOUND"
	// KindConflict indicates a duplicate id on create.
	KindConflict Kind = "CONFLICT"
	// KindInternal indicates an unexpected failure in a collaborator.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured error type for annostore.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is the human-readable error message. It names the offending
	// id and the expected state.
	Message string

	// ID is the annotation or collection id the operation was about, if any.
	ID string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so errors.Is works with sentinel kinds.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an internal Error around an underlying cause.
func Wrap(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// AnnotationNotFound reports an operation on an unknown annotation id.
func AnnotationNotFound(id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("annotation with id %s does not exist", id),
		ID:      id,
	}
}

// AnnotationExists reports a duplicate annotation id on create.
func AnnotationExists(id string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("annotation with id %s already exists", id),
		ID:      id,
	}
}

// CollectionNotFound reports an operation on an unknown collection id.
func CollectionNotFound(id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("collection with id %s does not exist", id),
		ID:      id,
	}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasKind(err, KindValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return hasKind(err, KindConflict)
}

func hasKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
