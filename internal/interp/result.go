package interp

import "github.com/magoolation/intmud.net-sub002/internal/value"

// State is the outcome of one function-call state machine (spec §4.4
// "State machine for a function call"): Entering/Running are internal to
// the dispatch loop; a call to Invoke always settles into exactly one of
// the terminal states below.
type State int

const (
	// StateReturning: ordinary ret/falling off the end of a function.
	StateReturning State = iota
	// StateTerminated: an explicit `terminar` unwound every frame.
	StateTerminated
	// StateQuota: the instruction budget (spec §4.4 "Instruction
	// budgeting") was exceeded mid-call.
	StateQuota
	// StateFaulted: an opcode-level error (stack underflow, missing frame,
	// corrupted bytecode) — an interpreter bug, not a source-language
	// misuse; no further instructions execute (spec §7).
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReturning:
		return "returning"
	case StateTerminated:
		return "terminated"
	case StateQuota:
		return "quota"
	case StateFaulted:
		return "faulted"
	default:
		return "?"
	}
}

// Result is what Invoke/CallMethod return: the produced value (meaningful
// only when State == StateReturning) plus the settled state and, for a
// faulted or quota-exceeded run, the error that caused it.
type Result struct {
	Value value.Value
	State State
	Err   error
}
