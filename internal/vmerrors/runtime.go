package vmerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// RuntimeKind classifies a RuntimeError along the taxonomy of spec §7:
// a recoverable fault (quota, uncallable value, out-of-range index) or a
// fatal one (stack underflow, missing frame, corrupted bytecode).
type RuntimeKind int

const (
	// Recoverable — the VM returns to the host with no further damage.
	QuotaExceeded RuntimeKind = iota
	UncallableValue
	IndexOutOfRange

	// Fatal — indicate an interpreter bug; no further instructions execute.
	StackUnderflow
	MissingFrame
	CorruptedBytecode
)

func (k RuntimeKind) String() string {
	switch k {
	case QuotaExceeded:
		return "quota exceeded"
	case UncallableValue:
		return "uncallable value"
	case IndexOutOfRange:
		return "index out of range"
	case StackUnderflow:
		return "stack underflow"
	case MissingFrame:
		return "missing frame"
	case CorruptedBytecode:
		return "corrupted bytecode"
	default:
		return "runtime error"
	}
}

// Fatal reports whether k belongs to the fatal half of the taxonomy: the
// VM returns a Faulted result and executes no further instructions (spec
// §4.4 "state machine for a function call").
func (k RuntimeKind) Fatal() bool {
	return k >= StackUnderflow
}

// RuntimeError is the interpreter's runtime-level fault value. Fatal kinds
// carry a captured StackTrace and are wrapped with github.com/pkg/errors
// (errors.WithStack) so a host gets a Go-level stack alongside the
// VM-level call-frame trace — the same pattern db47h's ngaro core-exec
// uses for its own VM faults.
type RuntimeError struct {
	Kind    RuntimeKind
	Detail  string
	Trace   StackTrace
	wrapped error
}

// NewRuntimeError builds a recoverable fault; no Go-level stack is
// attached since these are expected control flow, not bugs.
func NewRuntimeError(kind RuntimeKind, detail string) *RuntimeError {
	return &RuntimeError{Kind: kind, Detail: detail}
}

// NewFatalError builds a fatal fault, capturing trace and wrapping the
// triggering cause (if any) with errors.WithStack for host-side reporting.
func NewFatalError(kind RuntimeKind, detail string, trace StackTrace, cause error) *RuntimeError {
	re := &RuntimeError{Kind: kind, Detail: detail, Trace: trace}
	if cause != nil {
		re.wrapped = errors.WithStack(cause)
	} else {
		re.wrapped = errors.WithStack(errors.New(kind.String()))
	}
	return re
}

func (e *RuntimeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

// Unwrap exposes the pkg/errors-wrapped cause for errors.Is/errors.As.
func (e *RuntimeError) Unwrap() error { return e.wrapped }

// StackString formats the Go-level stack captured by pkg/errors for a
// fatal fault, when one was attached; empty for recoverable faults.
func (e *RuntimeError) StackString() string {
	if e.wrapped == nil {
		return ""
	}
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if st, ok := e.wrapped.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}
