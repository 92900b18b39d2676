// Package ozerr defines the error taxonomy shared by the daticle, bot, and
// ozone packages. Every error that crosses a bot/responder boundary is a
// *ozerr.Error so callers can branch on Kind without string matching.
package ozerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed. Kinds are coarse by design: they
// describe the category of failure an operator or caller must react to, not
// the specific cause (the wrapped cause carries that).
type Kind string

const (
	// Input marks invalid user input (bad key, bad schemes override).
	Input Kind = "input"
	// Missing marks expected data that is absent (key not found, no live file).
	Missing Kind = "missing"
	// Bug marks an invariant violation — a state the engine should never reach.
	Bug Kind = "bug"
	// Mismatch marks a checksum or size inconsistency in persisted data.
	Mismatch Kind = "mismatch"
	// IO marks a filesystem failure (open, read, write, rename).
	IO Kind = "io"
	// Channel marks a bot send/recv failure (closed channel, full queue).
	Channel Kind = "channel"
	// Decode marks malformed persisted bytes that fail to decode.
	Decode Kind = "decode"
	// Timeout marks a responder wait that expired.
	Timeout Kind = "timeout"
	// Conflict marks a concurrent-mutation conflict (e.g. superseded during gc).
	Conflict Kind = "conflict"
	// NoImpl marks a deliberately unimplemented code path.
	NoImpl Kind = "noimpl"
)

// Error is the structured error type returned across responder boundaries.
type Error struct {
	cause error
	Kind  Kind
	Msg   string
}

// New creates an *Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap wraps cause with a kind and message, preserving cause's stack via
// pkg/errors so it survives the hop across a goroutine boundary.
func Wrap(kind Kind, cause error, msg string) *Error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, Msg: msg, cause: errors.Wrap(cause, msg)}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
