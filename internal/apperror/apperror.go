// Package apperror defines the error taxonomy surfaced by component
// operations. Store-level failures are caught at each component boundary and
// re-raised as one of these kinds; callers see a structured kind + message,
// never a raw driver error.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transport mapping.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota
	// KindNotFound: a requested single entity does not exist.
	KindNotFound
	// KindValidation: malformed or insufficiently constrained input,
	// rejected before any store is touched.
	KindValidation
	// KindReferential: a write referenced a foreign id that does not exist,
	// surfaced when the store enforced the constraint.
	KindReferential
	// KindDependencyUnavailable: an optional store (cache, time-series
	// store) is unreachable.
	KindDependencyUnavailable
	// KindPrimaryUnavailable: the mandatory relational store is unreachable.
	KindPrimaryUnavailable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindReferential:
		return "referential"
	case KindDependencyUnavailable:
		return "dependency_unavailable"
	case KindPrimaryUnavailable:
		return "primary_unavailable"
	default:
		return "internal"
	}
}

// Error carries a kind, a human-readable message, and the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Validation builds a KindValidation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Referential builds a KindReferential error wrapping the store failure.
func Referential(msg string, err error) *Error {
	return &Error{Kind: KindReferential, Msg: msg, Err: err}
}

// DependencyUnavailable builds a KindDependencyUnavailable error.
func DependencyUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Msg: msg, Err: err}
}

// PrimaryUnavailable builds a KindPrimaryUnavailable error.
func PrimaryUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindPrimaryUnavailable, Msg: msg, Err: err}
}

// Internal wraps an unclassified failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// HTTPStatus maps a kind to its transport status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return 404
	case KindValidation:
		return 400
	case KindReferential:
		return 422
	case KindDependencyUnavailable, KindPrimaryUnavailable:
		return 503
	default:
		return 500
	}
}
