// Package keyerrors defines the stable error taxonomy shared by the key
// manager's services, HTTP surface and clients. Every failure that crosses a
// component boundary carries exactly one Kind; callers branch on the kind,
// never on message text.
package keyerrors

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of an error.
type Kind string

const (
	// KindInvalidArgument marks a malformed or out-of-range request.
	KindInvalidArgument Kind = "invalid_argument"
	// KindUnauthorized marks a missing or rejected credential.
	KindUnauthorized Kind = "unauthorized"
	// KindNotFound marks an absent copy or an unauthorized holder. Expired
	// copies collapse into this kind at the external surface.
	KindNotFound Kind = "not_found"
	// KindExpired marks a copy past its expiry window. Internal only: the
	// HTTP layer reports it exactly like KindNotFound so probing cannot
	// separate the two.
	KindExpired Kind = "expired"
	// KindGone marks a copy that exists but was already consumed.
	KindGone Kind = "gone"
	// KindConflict marks a duplicate insert or a lost concurrent race.
	KindConflict Kind = "conflict"
	// KindRateLimited marks an exhausted per-client budget.
	KindRateLimited Kind = "rate_limited"
	// KindDependency marks storage or ledger trouble. Internal detail stays
	// behind it; the message is always safe to show.
	KindDependency Kind = "dependency"
)

// Error couples a taxonomy kind with a human-readable message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a taxonomy error without an underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and a presentable message to an underlying error.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err. Unclassified errors report
// KindDependency so that internal failures never leak a sharper signal than
// intended.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// MessageOf returns the presentable message carried by err, or a generic one
// for unclassified errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
