// Package fault defines the error taxonomy shared by every layer.
// Each failure carries the (domain, layer, code) tuple it originated from,
// a Kind that maps onto an HTTP status, and the wrapped cause for logging.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of where it happened.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindAlreadyUsed
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindAlreadyUsed:
		return "already_used"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to its HTTP-equivalent status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyUsed, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a discriminated failure: which domain and layer raised it, a
// numeric code unique within that pair, and optionally the wrapped cause.
type Error struct {
	Kind   Kind
	Domain string // e.g. "user", "nonce", "auth"
	Layer  string // e.g. "controller", "middleware", "api"
	Code   int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s-%s-%d (%s): %v", e.Domain, e.Layer, e.Code, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s-%s-%d (%s)", e.Domain, e.Layer, e.Code, e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two faults on their (domain, layer, code) identity so callers
// can compare against package-level sentinel faults with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Domain == t.Domain && e.Layer == t.Layer && e.Code == t.Code
}

// New builds a fault with no underlying cause.
func New(kind Kind, domain, layer string, code int) *Error {
	return &Error{Kind: kind, Domain: domain, Layer: layer, Code: code}
}

// Wrap builds a fault around a collaborator failure, preserving the cause.
func Wrap(err error, kind Kind, domain, layer string, code int) *Error {
	return &Error{Kind: kind, Domain: domain, Layer: layer, Code: code, cause: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// anything outside the taxonomy.
func KindOf(err error) Kind {
	var f *Error
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// From returns the *Error inside err, or nil when err carries none.
func From(err error) *Error {
	var f *Error
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// IsKind reports whether err belongs to the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
