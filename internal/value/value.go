// Package value defines the tagged-union runtime value carried on the VM's
// operand stack (spec §3 "Operand stack value") and the numeric/string
// conversion rules of spec §4.4.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the payload a Value carries.
type Kind byte

const (
	Null Kind = iota
	Int
	Double
	String
	Object
	Handler // opaque host-handled domain value (files, sockets, timers, ...)
)

// ObjectRef is implemented by *classmodel.RuntimeObject; kept as an
// interface here so this package never imports internal/classmodel
// (which itself stores field Values, and would otherwise form an import
// cycle).
type ObjectRef interface {
	ClassName() string
	IsDeleted() bool
}

// HandlerValue is an opaque payload produced by a host TypeHandler
// (spec §6.4): a domain value (file handle, socket, timer, ...) plus the
// handler responsible for it.
type HandlerValue struct {
	Handler  any // a TypeHandler implementation; typed `any` to avoid a
	// dependency from this low-level package on the handler interface's
	// defining package.
	Payload any
}

// Value is the tagged union flowing through the bytecode interpreter's
// operand stack, locals, fields, and constants.
type Value struct {
	Kind   Kind
	I      int64
	D      float64
	S      string
	Obj    ObjectRef
	Handle *HandlerValue
}

func NullValue() Value               { return Value{Kind: Null} }
func IntValue(i int64) Value         { return Value{Kind: Int, I: i} }
func DoubleValue(d float64) Value    { return Value{Kind: Double, D: d} }
func StringValue(s string) Value     { return Value{Kind: String, S: s} }
func BoolValue(b bool) Value {
	if b {
		return Value{Kind: Int, I: 1}
	}
	return Value{Kind: Int, I: 0}
}
func ObjectValue(o ObjectRef) Value {
	if o == nil {
		return NullValue()
	}
	return Value{Kind: Object, Obj: o}
}
func HandlerVal(h *HandlerValue) Value { return Value{Kind: Handler, Handle: h} }

func (v Value) IsNull() bool   { return v.Kind == Null || (v.Kind == Object && v.Obj == nil) }
func (v Value) IsNumber() bool { return v.Kind == Int || v.Kind == Double }

// Truthy implements the language's boolean-conversion rule: null is false,
// zero numbers are false, the empty string is false, a nil or deleted
// object reference is false, everything else is true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Null:
		return false
	case Int:
		return v.I != 0
	case Double:
		return v.D != 0
	case String:
		return v.S != ""
	case Object:
		return v.Obj != nil && !v.Obj.IsDeleted()
	default:
		return true
	}
}

// AsFloat widens an Int/Double value to float64; non-numeric values yield 0.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case Int:
		return float64(v.I)
	case Double:
		return v.D
	}
	return 0
}

// AsInt truncates towards zero for Double, passes Int through, and yields
// 0 for anything else.
func (v Value) AsInt() int64 {
	switch v.Kind {
	case Int:
		return v.I
	case Double:
		return int64(v.D)
	}
	return 0
}

// Stringify implements spec §4.4's Add-with-a-string conversion rule:
// integers with minimal decimal representation, doubles with "general"
// format, null as the literal "nulo".
func (v Value) Stringify() string {
	switch v.Kind {
	case Null:
		return "nulo"
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Double:
		return strconv.FormatFloat(v.D, 'g', -1, 64)
	case String:
		return v.S
	case Object:
		if v.Obj == nil {
			return "nulo"
		}
		return fmt.Sprintf("<%s>", v.Obj.ClassName())
	default:
		return ""
	}
}

// NumberFromString parses s as a number the way `==` between a numeric
// value and a string does (spec §4.4): on failure the conversion "fails"
// and ok is false.
func NumberFromString(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i), true
	}
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return DoubleValue(d), true
	}
	return Value{}, false
}

// TypeName returns the value-category name used by TypeOf and diagnostics.
func (v Value) TypeName() string {
	switch v.Kind {
	case Null:
		return "nulo"
	case Int:
		return "int"
	case Double:
		return "real"
	case String:
		return "txt"
	case Object:
		return "obj"
	case Handler:
		return "handler"
	default:
		return "?"
	}
}
