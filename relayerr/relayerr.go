// Package relayerr classifies the error kinds spec'd for the relay's HTTP
// and admin surfaces. Store and cache operations and inbound signature
// verification wrap their root cause in one of these kinds so callers can
// classify it without string-matching; the inbox handler writes its own
// status codes and JSON error bodies directly.
package relayerr

import "errors"

type Kind int

const (
	Internal Kind = iota
	Validation
	AuthFailure
	PolicyDenied
	NotFound
	UpstreamFailure
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case AuthFailure:
		return "auth_failure"
	case PolicyDenied:
		return "policy_denied"
	case NotFound:
		return "not_found"
	case UpstreamFailure:
		return "upstream_failure"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error wraps a root cause with a Kind, so HTTP and CLI layers can switch on
// Kind instead of matching error strings.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// and Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
