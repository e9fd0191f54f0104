// Package fault defines the error kinds shared across the orchestrator.
// Every user-facing failure is one of these kinds; the kind decides whether
// a caller retries, degrades, or surfaces the message with a hint.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes an error for handling decisions.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindConfig          Kind = "config"           // missing token/key, unknown endpoint
	KindNetwork         Kind = "network"          // timeout, connection, 5xx after retries
	KindAuth            Kind = "auth"             // 401/403, never retried
	KindInvalidResponse Kind = "invalid_response" // provider reply missing required fields
	KindInvalidArgument Kind = "invalid_argument" // caller error, recoverable, never retried
	KindParse           Kind = "parse"            // malformed JSON where JSON was required
	KindInterrupted     Kind = "interrupted"      // user interrupt
)

// Error is the one error type the orchestrator raises. Hint carries the
// next suggested action shown to the user ("try /models", "re-read file
// first", ...).
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on kind when the target is a *Error with the
// same kind and no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// UserMessage renders the message with its remediation hint, if any.
func (e *Error) UserMessage() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Hint)
	}
	return e.Message
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithHint attaches a remediation hint and returns the same error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Config reports a configuration problem. The run aborts.
func Config(format string, args ...interface{}) *Error {
	return New(KindConfig, format, args...)
}

// Network reports a transport failure after retry exhaustion.
func Network(err error, format string, args ...interface{}) *Error {
	return Wrap(KindNetwork, err, format, args...)
}

// Auth reports a 401/403. Treated like config for remediation, never retried.
func Auth(format string, args ...interface{}) *Error {
	return New(KindAuth, format, args...)
}

// InvalidResponse reports a provider reply missing required fields.
func InvalidResponse(format string, args ...interface{}) *Error {
	return New(KindInvalidResponse, format, args...)
}

// InvalidArgument reports a recoverable caller error.
func InvalidArgument(format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, format, args...)
}

// Parse reports malformed structured output.
func Parse(err error, format string, args ...interface{}) *Error {
	return Wrap(KindParse, err, format, args...)
}

// Interrupted reports a user interrupt.
func Interrupted() *Error {
	return New(KindInterrupted, "interrupted")
}

// KindOf returns the kind of err, walking the wrap chain. Context
// cancellation maps to Interrupted; anything foreign is Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindInterrupted
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
