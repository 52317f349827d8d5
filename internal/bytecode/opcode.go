// Package bytecode implements the compile target (compiler, disassembler,
// serializer) of the wire-level bytecode format (spec §6.1); the stack
// virtual machine that executes it lives in internal/interp. The format is a
// one-byte opcode followed by a fixed, per-opcode operand layout. Opcode
// byte values are part of the external contract — disassembly and on-disk
// dumps must stay comparable, so the order below is load-bearing and must
// never be reshuffled.
package bytecode

// Op is a single bytecode opcode. The numeric value is part of the wire
// format (spec §6.1); do not reorder these constants.
type Op byte

const (
	// Stack manipulation — no operands.
	OpNop Op = iota
	OpPop
	OpDup
	OpSwap

	// Constants — no operands except PushInt/PushDouble/PushString.
	OpPushNull
	OpPushTrue
	OpPushFalse
	OpPushInt    // i32
	OpPushDouble // f64
	OpPushString // u16 pool index

	// Variables.
	OpLoadLocal  // u16 local index
	OpStoreLocal // u16 local index
	OpLoadField  // u16 string-pool index (field name)
	OpStoreField // u16 string-pool index (field name)
	OpLoadGlobal // u16 string-pool index
	OpStoreGlobal
	OpLoadArg  // u8 arg index (0..9)
	OpStoreArg // u8 arg index
	OpLoadArgCount
	OpLoadThis

	// Indexing and dynamic names — no operands, operands live on the stack.
	OpLoadIndex
	OpStoreIndex
	OpLoadFieldDynamic
	OpStoreFieldDynamic
	OpConcat
	OpLoadDynamic
	OpStoreDynamic

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Bitwise.
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr

	// Comparison.
	OpEq
	OpStrictEq
	OpNe
	OpStrictNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Logical unary.
	OpNot

	// Control flow. i16 relative offset; target = position_after_operand
	// + offset (spec §6.1).
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpJumpIfNull
	OpJumpIfNotNull

	// Calls.
	OpCall              // u16 function-name pool index, u8 argc
	OpCallMethod        // u16 method-name pool index, u8 argc
	OpCallMethodDynamic // u8 argc (name atop stack after args)
	OpCallDynamic       // u8 argc (callable atop stack after args)
	OpCallBuiltin       // u16 builtin id, u8 argc

	OpReturn
	OpReturnValue

	// Object / class model.
	OpNew             // u16 class-name pool index, u8 argc
	OpDelete
	OpTypeOf
	OpInstanceOf      // u16 class-name pool index
	OpLoadClass       // u16 class-name pool index
	OpLoadClassMember // u16 class pool index, u16 member pool index

	// Special.
	OpTerminate
	OpDebug
	OpLine // u16 source line (debug-info only)
)

var opNames = [...]string{
	OpNop: "nop", OpPop: "pop", OpDup: "dup", OpSwap: "swap",
	OpPushNull: "push_null", OpPushTrue: "push_true", OpPushFalse: "push_false",
	OpPushInt: "push_int", OpPushDouble: "push_double", OpPushString: "push_string",
	OpLoadLocal: "load_local", OpStoreLocal: "store_local",
	OpLoadField: "load_field", OpStoreField: "store_field",
	OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpLoadArg: "load_arg", OpStoreArg: "store_arg",
	OpLoadArgCount: "load_arg_count", OpLoadThis: "load_this",
	OpLoadIndex: "load_index", OpStoreIndex: "store_index",
	OpLoadFieldDynamic: "load_field_dyn", OpStoreFieldDynamic: "store_field_dyn",
	OpConcat: "concat", OpLoadDynamic: "load_dynamic", OpStoreDynamic: "store_dynamic",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpNeg: "neg",
	OpBitAnd: "bit_and", OpBitOr: "bit_or", OpBitXor: "bit_xor", OpBitNot: "bit_not",
	OpShl: "shl", OpShr: "shr",
	OpEq: "eq", OpStrictEq: "seq", OpNe: "ne", OpStrictNe: "sne",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpNot: "not",
	OpJump: "jump", OpJumpIfTrue: "jump_if_true", OpJumpIfFalse: "jump_if_false",
	OpJumpIfNull: "jump_if_null", OpJumpIfNotNull: "jump_if_not_null",
	OpCall: "call", OpCallMethod: "call_method", OpCallMethodDynamic: "call_method_dyn",
	OpCallDynamic: "call_dynamic", OpCallBuiltin: "call_builtin",
	OpReturn: "return", OpReturnValue: "return_value",
	OpNew: "new", OpDelete: "delete", OpTypeOf: "type_of",
	OpInstanceOf: "instance_of", OpLoadClass: "load_class", OpLoadClassMember: "load_class_member",
	OpTerminate: "terminate", OpDebug: "debug", OpLine: "line",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown"
}

// OperandWidth reports how many bytes of operand follow this opcode's byte,
// for opcodes whose operand size is fixed and independent of content (used
// by the disassembler and jump-closure validation, testable property 4).
// Opcodes not listed here take no operand (width 0) unless noted otherwise.
func (o Op) OperandWidth() int {
	switch o {
	case OpPushInt:
		return 4
	case OpPushDouble:
		return 8
	case OpPushString, OpLoadLocal, OpStoreLocal, OpLoadField, OpStoreField,
		OpLoadGlobal, OpStoreGlobal, OpInstanceOf, OpLoadClass, OpLine:
		return 2
	case OpLoadArg, OpStoreArg, OpCallMethodDynamic, OpCallDynamic:
		return 1
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfNull, OpJumpIfNotNull:
		return 2
	case OpCall, OpCallMethod, OpCallBuiltin:
		return 3 // u16 + u8
	case OpNew:
		return 3 // u16 + u8
	case OpLoadClassMember:
		return 4 // u16 + u16
	default:
		return 0
	}
}
