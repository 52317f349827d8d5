package interp

import (
	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// applyBinary implements spec §4.4's numeric/string semantics for one
// binary opcode: mixed-type arithmetic promotes to double when either
// operand is double; `/` between integers truncates towards zero; `%`
// takes the dividend's sign (Go's int64 / and % already match both
// rules); string concatenation activates whenever either Add operand is a
// string; `==` converts a string operand to a number when possible and
// otherwise compares false, while `===` requires tag equality.
func applyBinary(op bytecode.Op, a, b value.Value) value.Value {
	switch op {
	case bytecode.OpAdd:
		if a.Kind == value.String || b.Kind == value.String {
			return value.StringValue(a.Stringify() + b.Stringify())
		}
		return arith(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	case bytecode.OpSub:
		return arith(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case bytecode.OpMul:
		return arith(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	case bytecode.OpDiv:
		if isDouble(a) || isDouble(b) {
			d := b.AsFloat()
			if d == 0 {
				return value.DoubleValue(0)
			}
			return value.DoubleValue(a.AsFloat() / d)
		}
		y := b.AsInt()
		if y == 0 {
			return value.IntValue(0)
		}
		return value.IntValue(a.AsInt() / y) // Go's / truncates towards zero
	case bytecode.OpMod:
		y := b.AsInt()
		if y == 0 {
			return value.IntValue(0)
		}
		return value.IntValue(a.AsInt() % y) // Go's % takes the dividend's sign
	case bytecode.OpBitAnd:
		return value.IntValue(a.AsInt() & b.AsInt())
	case bytecode.OpBitOr:
		return value.IntValue(a.AsInt() | b.AsInt())
	case bytecode.OpBitXor:
		return value.IntValue(a.AsInt() ^ b.AsInt())
	case bytecode.OpShl:
		return value.IntValue(a.AsInt() << uint(b.AsInt()&63))
	case bytecode.OpShr:
		return value.IntValue(a.AsInt() >> uint(b.AsInt()&63))
	case bytecode.OpEq:
		return value.BoolValue(looseEquals(a, b))
	case bytecode.OpNe:
		return value.BoolValue(!looseEquals(a, b))
	case bytecode.OpStrictEq:
		return value.BoolValue(strictEquals(a, b))
	case bytecode.OpStrictNe:
		return value.BoolValue(!strictEquals(a, b))
	case bytecode.OpLt:
		return value.BoolValue(compareValues(a, b) < 0)
	case bytecode.OpLe:
		return value.BoolValue(compareValues(a, b) <= 0)
	case bytecode.OpGt:
		return value.BoolValue(compareValues(a, b) > 0)
	case bytecode.OpGe:
		return value.BoolValue(compareValues(a, b) >= 0)
	}
	return value.NullValue()
}

func isDouble(v value.Value) bool { return v.Kind == value.Double }

func arith(a, b value.Value, intFn func(int64, int64) int64, floatFn func(float64, float64) float64) value.Value {
	if isDouble(a) || isDouble(b) {
		return value.DoubleValue(floatFn(a.AsFloat(), b.AsFloat()))
	}
	return value.IntValue(intFn(a.AsInt(), b.AsInt()))
}

// looseEquals implements `==`: numeric-vs-numeric compares by value,
// string-vs-string compares by bytes, numeric-vs-string parses the string
// as a number and compares, else false; null equals only null (and an
// object value with a nil reference). A deleted object does not equal null.
func looseEquals(a, b value.Value) bool {
	if a.Kind == value.Null || b.Kind == value.Null {
		return a.IsNull() && b.IsNull()
	}
	if a.IsNumber() && b.IsNumber() {
		return a.AsFloat() == b.AsFloat()
	}
	if a.Kind == value.String && b.Kind == value.String {
		return a.S == b.S
	}
	if a.IsNumber() && b.Kind == value.String {
		n, ok := value.NumberFromString(b.S)
		return ok && a.AsFloat() == n.AsFloat()
	}
	if b.IsNumber() && a.Kind == value.String {
		n, ok := value.NumberFromString(a.S)
		return ok && b.AsFloat() == n.AsFloat()
	}
	if a.Kind == value.Object && b.Kind == value.Object {
		return a.Obj == b.Obj
	}
	return false
}

// strictEquals implements `===`: tag equality is required first.
func strictEquals(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.Null:
		return true
	case value.Int:
		return a.I == b.I
	case value.Double:
		return a.D == b.D
	case value.String:
		return a.S == b.S
	case value.Object:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// compareValues orders operands for relational operators: numeric compares
// numerically (promoting to double when mixed), strings lexically; any
// other pairing (including a string that fails to parse as a number when
// compared against a number) falls back to comparing Stringify() output.
func compareValues(a, b value.Value) int {
	if a.IsNumber() && b.IsNumber() {
		switch {
		case a.AsFloat() < b.AsFloat():
			return -1
		case a.AsFloat() > b.AsFloat():
			return 1
		default:
			return 0
		}
	}
	if a.Kind == value.String && b.Kind == value.String {
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	}
	sa, sb := a.Stringify(), b.Stringify()
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// truncateToType implements spec §4.4's typed-store truncation: int1 keeps
// only the low bit; int8/uint8 the low 8 bits (sign-extended on load for
// the signed variant); int16/uint16 and int32/uint32 follow the same
// pattern at their respective widths. Unrecognized/non-integer type names
// (real, ref, object/vector/handler slots, ...) pass the value through.
func truncateToType(typeName string, v value.Value) value.Value {
	if v.Kind != value.Int {
		return v
	}
	switch typeName {
	case "int1":
		return value.IntValue(v.I & 1)
	case "int8":
		return value.IntValue(int64(int8(v.I)))
	case "uint8":
		return value.IntValue(int64(uint8(v.I)))
	case "int16":
		return value.IntValue(int64(int16(v.I)))
	case "uint16":
		return value.IntValue(int64(uint16(v.I)))
	case "int32":
		return value.IntValue(int64(int32(v.I)))
	case "uint32":
		return value.IntValue(int64(uint32(v.I)))
	default:
		return v
	}
}
