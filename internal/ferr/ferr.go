// Package ferr defines the typed error taxonomy used across the flight
// log core: Format, Source, IO, Space, Crypto and Plugin errors, per the
// error handling design. Callers switch on Kind rather than matching
// error strings.
package ferr

import (
	"fmt"
)

// Kind classifies a failure into one of the taxonomy buckets.
type Kind string

const (
	// KindFormat covers bad magic/version, truncated entries, non-NUL
	// terminated strings, and telemetry size overflows. Fatal for the
	// enclosing block.
	KindFormat Kind = "format"
	// KindSource covers a source returning zero bytes or a partial
	// record. The source is skipped for the current tick.
	KindSource Kind = "source"
	// KindIO covers short writes, write failures and fsync failures.
	// The file is closed immediately.
	KindIO Kind = "io"
	// KindSpace covers quota/free-space/size-cap triggers. Not
	// exceptional — a scheduled rotation with a close reason.
	KindSpace Kind = "space"
	// KindCrypto covers missing keys and seal failures. Fails session
	// start without enabling encryption.
	KindCrypto Kind = "crypto"
	// KindPlugin covers load/init/shutdown failures of a single plugin.
	// Other plugins proceed.
	KindPlugin Kind = "plugin"
)

// Error is the single error type produced by the core. It carries enough
// context (component, operation, kind) for a caller to decide policy
// without parsing the message.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap attaches a cause to an already-built Error and returns it, for
// chaining off constructors like Format(...).Wrap(err).
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// New builds an Error with no cause.
func New(kind Kind, component, operation, message string) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message}
}

// Wrap builds an Error wrapping cause. Returns nil if cause is nil.
func Wrap(kind Kind, component, operation string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Operation: operation, Message: cause.Error(), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	return fe.Kind == kind
}

func Format(component, operation, message string) *Error { return New(KindFormat, component, operation, message) }
func Source(component, operation, message string) *Error { return New(KindSource, component, operation, message) }
func IO(component, operation string, cause error) *Error { return Wrap(KindIO, component, operation, cause) }
func Space(component, operation, message string) *Error  { return New(KindSpace, component, operation, message) }
func Crypto(component, operation string, cause error) *Error {
	return Wrap(KindCrypto, component, operation, cause)
}
func Plugin(component, operation string, cause error) *Error {
	return Wrap(KindPlugin, component, operation, cause)
}
