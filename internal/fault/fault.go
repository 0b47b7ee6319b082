// Package fault defines the failure taxonomy shared by every component.
// Each error carries a machine-readable Kind; only StorageUnavailable is
// fatal, everything else reports a well-formed request that cannot be
// honored.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

// Failure kinds.
const (
	InvalidDomain      Kind = "InvalidDomain"
	DuplicateDomain    Kind = "DuplicateDomain"
	NotFound           Kind = "NotFound"
	UnknownRecipient   Kind = "UnknownRecipient"
	UnknownMessage     Kind = "UnknownMessage"
	TierDenied         Kind = "TierDenied"
	RateLimited        Kind = "RateLimited"
	ValidationError    Kind = "ValidationError"
	StorageUnavailable Kind = "StorageUnavailable"
)

// Fatal reports whether the kind signals an internal failure rather than a
// problem with the request.
func (k Kind) Fatal() bool {
	return k == StorageUnavailable
}

// Error is a classified failure. Err is the wrapped cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Storage wraps a backing-store error as StorageUnavailable.
func Storage(msg string, err error) error {
	return Wrap(StorageUnavailable, msg, err)
}

// KindOf extracts the failure kind from err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
