package vmerrors

import (
	"fmt"
	"strings"
)

// StackFrame is one call-stack entry captured at the moment a runtime
// fault is raised (spec §4.4 "Frame stack").
type StackFrame struct {
	FunctionName string
	ClassName    string
	Line         int
}

func (sf StackFrame) String() string {
	if sf.Line == 0 {
		return fmt.Sprintf("%s.%s", sf.ClassName, sf.FunctionName)
	}
	return fmt.Sprintf("%s.%s [line %d]", sf.ClassName, sf.FunctionName, sf.Line)
}

// StackTrace is a call stack, ordered oldest (bottom) to newest (top),
// captured at fault time for a RuntimeError's diagnostic.
type StackTrace []StackFrame

func (st StackTrace) String() string {
	if len(st) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(st) - 1; i >= 0; i-- {
		sb.WriteString(st[i].String())
		if i > 0 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Top returns the most recently entered frame, or the zero value if empty.
func (st StackTrace) Top() (StackFrame, bool) {
	if len(st) == 0 {
		return StackFrame{}, false
	}
	return st[len(st)-1], true
}

// Depth reports how many frames are live.
func (st StackTrace) Depth() int { return len(st) }
