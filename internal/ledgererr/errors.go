// Package ledgererr defines the error taxonomy shared by every ledger component.
package ledgererr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller can recover from them.
type Kind string

const (
	// KindValidation is bad input, rejected before any mutation.
	KindValidation Kind = "validation"
	// KindStateConflict is a request that is illegal in the current state.
	KindStateConflict Kind = "state_conflict"
	// KindReferential is a missing account or record that may be provisioned.
	KindReferential Kind = "referential"
	// KindIrrecoverable is always rejected; only a compensating entry helps.
	KindIrrecoverable Kind = "irrecoverable"
	// KindNotFound is an unknown identifier.
	KindNotFound Kind = "not_found"
)

// Error is the concrete error returned by ledger operations.
type Error struct {
	Kind     Kind
	Code     string
	Entity   string
	EntityID string
	Message  string
	Err      error
}

// Error returns a string representation of the error.
func (e *Error) Error() string {
	msg := e.Code
	if e.Entity != "" {
		if e.EntityID != "" {
			msg = fmt.Sprintf("%s [%s %s]", msg, e.Entity, e.EntityID)
		} else {
			msg = fmt.Sprintf("%s [%s]", msg, e.Entity)
		}
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind and code.
func New(kind Kind, code, entity, entityID, message string) *Error {
	return &Error{Kind: kind, Code: code, Entity: entity, EntityID: entityID, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, code, entity, entityID, format string, args ...any) *Error {
	return New(kind, code, entity, entityID, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new error.
func Wrap(err error, kind Kind, code, entity, entityID, message string) *Error {
	e := New(kind, code, entity, entityID, message)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsStateConflict reports whether err is a state-conflict error.
func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }

// IsReferential reports whether err is a referential error.
func IsReferential(err error) bool { return KindOf(err) == KindReferential }

// IsIrrecoverable reports whether err can never succeed on retry.
func IsIrrecoverable(err error) bool { return KindOf(err) == KindIrrecoverable }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
