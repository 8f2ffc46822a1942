// Package deckerr defines the error kinds shared across deckfsd's core
// components, matching the taxonomy of the recovery policy: a bad entity
// goes invalid, everything around it keeps running.
package deckerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the broad error categories the core recovers from
// locally versus the one kind that is fatal to the whole process.
type Kind int

const (
	// Parse covers an ill-formed filename or option value.
	Parse Kind = iota
	// ReferenceUnresolved covers a ref=... target that cannot be found.
	ReferenceUnresolved
	// VariableUnresolved covers a $VAR with no definition in scope.
	VariableUnresolved
	// Evaluation covers any expression-evaluator failure.
	Evaluation
	// IO covers image/font/process-spawn failures.
	IO
	// Device covers hardware facade transport failures.
	Device
	// Fatal covers unrecoverable core invariant violations.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case ReferenceUnresolved:
		return "reference-unresolved"
	case VariableUnresolved:
		return "variable-unresolved"
	case Evaluation:
		return "evaluation"
	case IO:
		return "io"
	case Device:
		return "device"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and the filesystem path (if
// any) it concerns, so logs and the Invalid() state can point at the
// offending entity.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error for the given kind, path, and cause.
func New(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Err: cause}
}

// Newf builds a *Error with a formatted message instead of a wrapped cause.
func Newf(kind Kind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
