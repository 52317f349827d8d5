package bytecode

import "fmt"

// ErrorKind enumerates spec §4.3.3's CompileError kinds.
type ErrorKind int

const (
	Redefinition ErrorKind = iota
	UndefinedVariable
	InvalidAssignmentTarget
	UnknownOperator
	TextSizeOutOfRange
	DuplicateLocal
)

var errorKindNames = [...]string{
	Redefinition: "redefinition", UndefinedVariable: "undefined variable",
	InvalidAssignmentTarget: "invalid assignment target", UnknownOperator: "unknown operator",
	TextSizeOutOfRange: "text size out of range", DuplicateLocal: "duplicate local",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "compile error"
}

// CompileError is a fatal-per-unit compiler diagnostic (spec §4.3.3).
type CompileError struct {
	Kind   ErrorKind
	Detail string
	Line   int
	Column int
}

func (e *CompileError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Column, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Kind)
}

// LinkError reports an unresolved base class (spec §7: fatal at load).
type LinkError struct {
	ClassName string
	Detail    string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link error: class %q: %s", e.ClassName, e.Detail)
}
