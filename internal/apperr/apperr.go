// Package apperr carries the error taxonomy shared by the service and API
// layers: every user-visible failure is one of a small set of kinds, so
// handlers can map errors to HTTP statuses without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation: a required field is missing or malformed. Checked before
	// any write begins.
	Validation Kind = iota
	// NotFound: a referenced project, branch, issue, milestone, comment or
	// paste does not exist.
	NotFound
	// Conflict: a store-level uniqueness constraint rejected the write.
	Conflict
	// Permission: the actor is not allowed to perform this operation.
	Permission
	// Transaction: the underlying store failed mid-way through a composite
	// write; the transaction was rolled back.
	Transaction
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Permission:
		return "permission"
	case Transaction:
		return "transaction"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error // original cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a taxonomy kind. A nil cause returns nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func Validationf(format string, args ...any) *Error { return New(Validation, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return New(NotFound, format, args...) }
func Conflictf(format string, args ...any) *Error   { return New(Conflict, format, args...) }
func Permissionf(format string, args ...any) *Error { return New(Permission, format, args...) }

// IsKind reports whether err is (or wraps) a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the taxonomy kind of err, or Transaction for untyped errors
// so callers always have a status to report.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Transaction
}
