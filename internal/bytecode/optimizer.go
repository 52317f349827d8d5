package bytecode

// OptimizationPass names one independent peephole rewrite.
type OptimizationPass string

const (
	// PassLiteralDiscard erases a pushed value immediately discarded by a
	// following Pop — a pattern left behind by expression-statement
	// lowering (an expression compiled for its side effects alone still
	// pushes its result) and by dead varconst/initializer thunks.
	PassLiteralDiscard OptimizationPass = "literal-push-pop"
)

// OptimizeOption toggles optimizer behavior.
type OptimizeOption func(*optimizeConfig)

type optimizeConfig struct {
	enabled map[OptimizationPass]bool
}

// WithOptimizationPass enables or disables a named pass. Unset passes
// default to disabled — the optimizer is gated off entirely unless a
// caller explicitly opts in (spec silence on optimization + testable
// property 4's jump-target contract means this must never run by
// default).
func WithOptimizationPass(pass OptimizationPass, enabled bool) OptimizeOption {
	return func(cfg *optimizeConfig) {
		if cfg.enabled == nil {
			cfg.enabled = make(map[OptimizationPass]bool)
		}
		cfg.enabled[pass] = enabled
	}
}

func (cfg optimizeConfig) isEnabled(pass OptimizationPass) bool {
	return cfg.enabled[pass]
}

// OptimizeFunction rewrites fn's code in place according to the enabled
// passes and returns whether anything changed. Every rewrite preserves the
// exact byte length and boundary of every instruction it touches — opcodes
// are only ever replaced with same-width opcodes (most commonly Nop, whose
// operand width is always zero) — so no jump offset anywhere in the
// function, patched or not yet patched, ever needs renumbering. This is
// the guarantee testable property 4 requires.
func OptimizeFunction(fn *CompiledFunction, opts ...OptimizeOption) bool {
	var cfg optimizeConfig
	for _, o := range opts {
		o(&cfg)
	}
	changed := false
	if cfg.isEnabled(PassLiteralDiscard) {
		changed = foldLiteralDiscards(fn.Code) || changed
	}
	return changed
}

// foldLiteralDiscards scans for a literal-push opcode immediately followed
// by Pop and replaces every byte of both instructions with Nop. A later
// Jump landing inside the blanked region still lands on a Nop and falls
// through harmlessly; a jump landing exactly on the old Pop now lands on a
// Nop instead — also harmless, since Nop is a strict no-op.
func foldLiteralDiscards(code []byte) bool {
	changed := false
	for i := 0; i < len(code); {
		op := Op(code[i])
		width := op.OperandWidth()
		instrLen := 1 + width
		if i+instrLen >= len(code) {
			i += instrLen
			continue
		}
		if isPureLiteralPush(op) && Op(code[i+instrLen]) == OpPop {
			for j := i; j < i+instrLen+1; j++ {
				code[j] = byte(OpNop)
			}
			changed = true
			i += instrLen + 1
			continue
		}
		i += instrLen
	}
	return changed
}

// isPureLiteralPush reports whether op pushes a value with no observable
// side effect of its own (so discarding the push is always safe): it reads
// no mutable state and the following Pop cannot be reached unless this
// instruction already ran.
func isPureLiteralPush(op Op) bool {
	switch op {
	case OpPushNull, OpPushTrue, OpPushFalse, OpPushInt, OpPushDouble, OpPushString,
		OpLoadLocal, OpLoadArg, OpLoadArgCount, OpLoadThis:
		return true
	}
	return false
}
