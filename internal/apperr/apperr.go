// Package apperr classifies failures into the small set of kinds the API
// surfaces to clients. Handlers map kinds to HTTP statuses; everything else
// about the underlying error stays server-side.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	InvalidInput
	BlockedPattern
	RateLimited
	QuotaExceeded
	NotFound
	Forbidden
	ProvisionFailed
	SessionBusy
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case BlockedPattern:
		return "blocked_pattern"
	case RateLimited:
		return "rate_limited"
	case QuotaExceeded:
		return "quota_exceeded"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case ProvisionFailed:
		return "provision_failed"
	case SessionBusy:
		return "session_busy"
	default:
		return "internal"
	}
}

// Error carries a kind plus a short, stable message safe to show clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UserMessage returns the client-facing message for err. Unclassified errors
// collapse to a generic message so provider detail never leaks.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
