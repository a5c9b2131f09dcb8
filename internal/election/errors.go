package election

import (
	"errors"

	"election-ledger/internal/ballot"
	"election-ledger/internal/database"
)

// Kind classifies a domain error so transport layers can map it to a
// response without inspecting messages.
type Kind int

const (
	// KindInternal is the default for anything unclassified
	KindInternal Kind = iota

	// KindValidation means the input itself is bad
	KindValidation

	// KindPolicy means the operation is forbidden in the current state
	KindPolicy

	// KindNotFound means the referenced record does not exist
	KindNotFound

	// KindIntegrity means tamper evidence was found. Never auto-repaired.
	KindIntegrity

	// KindTransient means the caller may safely retry
	KindTransient
)

// Error is a classified domain error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from anywhere in an error chain.
// Lock timeouts are transient and chain violations are integrity failures
// even when they were not wrapped.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	if errors.Is(err, database.ErrLockTimeout) {
		return KindTransient
	}
	var integrityErr *ballot.IntegrityError
	if errors.As(err, &integrityErr) {
		return KindIntegrity
	}
	return KindInternal
}
