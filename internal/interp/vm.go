// Package interp implements the stack-based interpreter (spec §4.4): an
// operand stack plus a call-frame stack, executing CompiledFunction
// bytecode against the classmodel class/object graph. The core is
// single-threaded cooperative (spec §5) — one VM executes one
// function-call tree to completion, to quota, or to an explicit
// `terminar` before another entry call may be dispatched.
package interp

import (
	"encoding/binary"
	"math"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/value"
	"github.com/magoolation/intmud.net-sub002/internal/vmerrors"
)

// VM is one interpreter instance. OnOutput/MaxInstructions are per-VM
// state (spec §9 "Global mutable state": "always store them on the VM
// instance"), never process-global.
type VM struct {
	Loader *classmodel.Loader

	maxInstructions int64
	instrCount      int64
	onOutput        func(string)
	input           func() string

	stack      []value.Value
	frames     []*frame
	constCache map[*bytecode.Constant]value.Value
}

// New builds a VM bound to loader (already Resolve()d).
func New(loader *classmodel.Loader, opts ...Option) *VM {
	vm := &VM{Loader: loader}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// --- operand stack helpers ---

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (value.Value, bool) {
	if len(vm.stack) == 0 {
		return value.Value{}, false
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, true
}

func (vm *VM) peek() (value.Value, bool) {
	if len(vm.stack) == 0 {
		return value.Value{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

func (vm *VM) curFrame() *frame { return vm.frames[len(vm.frames)-1] }

// --- output sink ---

func (vm *VM) emit(s string) {
	if vm.onOutput != nil {
		vm.onOutput(s)
	}
}

// readln pulls one value from the host-installed input provider (spec
// §6.4 "setInput"); with no provider installed it returns "" so a
// standalone program (no host wiring) never faults on it.
func (vm *VM) readln() string {
	if vm.input != nil {
		return vm.input()
	}
	return ""
}

// --- public entry points (spec §6.4 host interface) ---

// CreateInstance allocates a new object of className, runs its
// initializer convention function if present, and returns the object
// (spec §4.4 "Instance creation", spec §9 open question 1 — see
// DESIGN.md for the resolved convention).
func (vm *VM) CreateInstance(className string, args []value.Value) (*classmodel.RuntimeObject, *Result) {
	class, ok := vm.Loader.Lookup(className)
	if !ok {
		return nil, &Result{State: StateFaulted, Err: vmerrors.NewRuntimeError(vmerrors.UncallableValue, "unknown class "+className)}
	}
	if len(vm.frames) == 0 {
		vm.instrCount = 0
	}
	obj := classmodel.NewRuntimeObject(class)
	class.Register(obj)
	vm.runInstanceInitializers(obj)
	if fn, owner := class.FindFunction(constructorName); fn != nil {
		res := vm.invoke(owner, fn, obj, args)
		if res.State == StateFaulted || res.State == StateQuota {
			return obj, &res
		}
	}
	return obj, nil
}

// DeleteInstance runs the destructor convention (if present) then marks
// obj deleted (spec §4.4 "Deletion"). Idempotent (testable property 10).
func (vm *VM) DeleteInstance(obj *classmodel.RuntimeObject) *Result {
	if obj == nil || obj.Deleted {
		return nil
	}
	if fn, owner := obj.Class.FindFunction(destructorName); fn != nil {
		res := vm.invoke(owner, fn, obj, nil)
		if res.State == StateFaulted || res.State == StateQuota {
			obj.Delete()
			return &res
		}
	}
	obj.Delete()
	return nil
}

// CallMethod invokes methodName on obj with args, resolving it through the
// object's class ancestor chain (spec §4.4 "Method dispatch"). This is a
// top-level invocation: the instruction quota counter resets here.
func (vm *VM) CallMethod(obj *classmodel.RuntimeObject, methodName string, args []value.Value) Result {
	if obj == nil || obj.Deleted {
		return Result{Value: value.NullValue(), State: StateReturning}
	}
	fn, owner := obj.Class.FindFunction(methodName)
	if fn == nil {
		return Result{Value: value.NullValue(), State: StateReturning}
	}
	if len(vm.frames) == 0 {
		vm.instrCount = 0
	}
	return vm.invoke(owner, fn, obj, args)
}

// constructorName / destructorName are the fixed naming convention this
// implementation resolves spec §9 open question 1/deletion-hook under:
// see DESIGN.md for why these names (rather than a reserved keyword) were
// chosen — a class is free to simply not declare either.
const (
	constructorName = "novo"
	destructorName  = "apagar"
)

// invoke runs one function body to completion against receiver/args,
// pushing a fresh frame. It does not reset the instruction quota — only
// the top-level entries (CallMethod, and CreateInstance when no frame is
// active) do that — so nested calls share
// one running counter per top-level invocation (spec §4.4).
func (vm *VM) invoke(class *classmodel.Class, fn *bytecode.CompiledFunction, receiver *classmodel.RuntimeObject, args []value.Value) Result {
	f := newFrame(fn, class, receiver, args)
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	return vm.run(f)
}

// run executes f's bytecode to completion: a normal/explicit return, a
// terminate, a quota fault, or an opcode-level fault.
func (vm *VM) run(f *frame) Result {
	code := f.Function.Code
	for {
		if vm.maxInstructions > 0 {
			vm.instrCount++
			if vm.instrCount > vm.maxInstructions {
				return Result{State: StateQuota, Err: vmerrors.NewRuntimeError(vmerrors.QuotaExceeded, "instruction budget exceeded")}
			}
		}
		if f.PC >= len(code) {
			return Result{Value: value.NullValue(), State: StateReturning}
		}
		op := bytecode.Op(code[f.PC])
		f.PC++

		switch op {
		case bytecode.OpNop, bytecode.OpDebug:
			// no-op
		case bytecode.OpLine:
			f.PC += 2
		case bytecode.OpPop:
			if _, ok := vm.pop(); !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "pop")
			}
		case bytecode.OpDup:
			v, ok := vm.peek()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "dup")
			}
			vm.push(v)
		case bytecode.OpSwap:
			b, ok1 := vm.pop()
			a, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "swap")
			}
			vm.push(b)
			vm.push(a)
		case bytecode.OpPushNull:
			vm.push(value.NullValue())
		case bytecode.OpPushTrue:
			vm.push(value.BoolValue(true))
		case bytecode.OpPushFalse:
			vm.push(value.BoolValue(false))
		case bytecode.OpPushInt:
			vm.push(value.IntValue(int64(readI32(code, f.PC))))
			f.PC += 4
		case bytecode.OpPushDouble:
			vm.push(value.DoubleValue(readF64(code, f.PC)))
			f.PC += 8
		case bytecode.OpPushString:
			idx := readU16(code, f.PC)
			f.PC += 2
			vm.push(value.StringValue(f.DefiningClass.Unit.Strings.Get(int(idx))))

		case bytecode.OpLoadLocal:
			idx := readU16(code, f.PC)
			f.PC += 2
			vm.push(f.Locals[idx])
		case bytecode.OpStoreLocal:
			idx := readU16(code, f.PC)
			f.PC += 2
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "store_local")
			}
			f.Locals[idx] = v

		case bytecode.OpLoadArg:
			idx := int(code[f.PC])
			f.PC++
			vm.push(f.Args[idx])
		case bytecode.OpStoreArg:
			idx := int(code[f.PC])
			f.PC++
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "store_arg")
			}
			// Argument assignment mutates only this frame's slot (spec
			// §4.4 "by value"); the caller's values are unaffected.
			f.Args[idx] = v
		case bytecode.OpLoadArgCount:
			vm.push(value.IntValue(int64(f.ArgCount)))
		case bytecode.OpLoadThis:
			vm.push(value.ObjectValue(f.Receiver))

		case bytecode.OpLoadField:
			idx := readU16(code, f.PC)
			f.PC += 2
			name := f.DefiningClass.Unit.Strings.Get(int(idx))
			objv, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "load_field")
			}
			res := vm.loadField(valueAsObject(objv), name)
			if res.State != StateReturning {
				return res
			}
			vm.push(res.Value)
		case bytecode.OpStoreField:
			idx := readU16(code, f.PC)
			f.PC += 2
			name := f.DefiningClass.Unit.Strings.Get(int(idx))
			val, ok1 := vm.pop()
			objv, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "store_field")
			}
			if err := vm.storeField(valueAsObject(objv), name, val); err != nil {
				return vm.faultErr(f, err)
			}

		case bytecode.OpLoadGlobal:
			idx := readU16(code, f.PC)
			f.PC += 2
			name := f.DefiningClass.Unit.Strings.Get(int(idx))
			res := vm.resolveDynamicLoad(f, name)
			if res.State != StateReturning {
				return res
			}
			vm.push(res.Value)
		case bytecode.OpStoreGlobal:
			idx := readU16(code, f.PC)
			f.PC += 2
			name := f.DefiningClass.Unit.Strings.Get(int(idx))
			val, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "store_global")
			}
			vm.resolveDynamicStore(f, name, val)

		case bytecode.OpLoadIndex:
			idx, ok1 := vm.pop()
			coll, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "load_index")
			}
			vm.push(vm.loadIndex(coll, idx))
		case bytecode.OpStoreIndex:
			val, ok1 := vm.pop()
			idx, ok2 := vm.pop()
			coll, ok3 := vm.pop()
			if !ok1 || !ok2 || !ok3 {
				return vm.fault(f, vmerrors.StackUnderflow, "store_index")
			}
			vm.storeIndex(coll, idx, val)

		case bytecode.OpLoadFieldDynamic:
			name, ok1 := vm.pop()
			objv, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "load_field_dyn")
			}
			res := vm.loadField(valueAsObject(objv), name.Stringify())
			if res.State != StateReturning {
				return res
			}
			vm.push(res.Value)
		case bytecode.OpStoreFieldDynamic:
			val, ok1 := vm.pop()
			name, ok2 := vm.pop()
			objv, ok3 := vm.pop()
			if !ok1 || !ok2 || !ok3 {
				return vm.fault(f, vmerrors.StackUnderflow, "store_field_dyn")
			}
			if err := vm.storeField(valueAsObject(objv), name.Stringify(), val); err != nil {
				return vm.faultErr(f, err)
			}

		case bytecode.OpConcat:
			b, ok1 := vm.pop()
			a, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "concat")
			}
			vm.push(value.StringValue(a.Stringify() + b.Stringify()))
		case bytecode.OpLoadDynamic:
			name, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "load_dynamic")
			}
			res := vm.resolveDynamicLoad(f, name.Stringify())
			if res.State != StateReturning {
				return res
			}
			vm.push(res.Value)
		case bytecode.OpStoreDynamic:
			val, ok1 := vm.pop()
			name, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "store_dynamic")
			}
			vm.resolveDynamicStore(f, name.Stringify(), val)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr,
			bytecode.OpEq, bytecode.OpStrictEq, bytecode.OpNe, bytecode.OpStrictNe,
			bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			b, ok1 := vm.pop()
			a, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.fault(f, vmerrors.StackUnderflow, "binary op")
			}
			vm.push(applyBinary(op, a, b))
		case bytecode.OpNeg:
			a, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "neg")
			}
			if a.Kind == value.Double {
				vm.push(value.DoubleValue(-a.D))
			} else {
				vm.push(value.IntValue(-a.AsInt()))
			}
		case bytecode.OpBitNot:
			a, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "bit_not")
			}
			vm.push(value.IntValue(^a.AsInt()))
		case bytecode.OpNot:
			a, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "not")
			}
			vm.push(value.BoolValue(!a.Truthy()))

		case bytecode.OpJump:
			rel := readI16(code, f.PC)
			f.PC = f.PC + 2 + int(rel)
		case bytecode.OpJumpIfTrue:
			rel := readI16(code, f.PC)
			target := f.PC + 2 + int(rel)
			f.PC += 2
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "jump_if_true")
			}
			if v.Truthy() {
				f.PC = target
			}
		case bytecode.OpJumpIfFalse:
			rel := readI16(code, f.PC)
			target := f.PC + 2 + int(rel)
			f.PC += 2
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "jump_if_false")
			}
			if !v.Truthy() {
				f.PC = target
			}
		case bytecode.OpJumpIfNull:
			rel := readI16(code, f.PC)
			target := f.PC + 2 + int(rel)
			f.PC += 2
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "jump_if_null")
			}
			if v.IsNull() {
				f.PC = target
			}
		case bytecode.OpJumpIfNotNull:
			rel := readI16(code, f.PC)
			target := f.PC + 2 + int(rel)
			f.PC += 2
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "jump_if_not_null")
			}
			if !v.IsNull() {
				f.PC = target
			}

		case bytecode.OpCall:
			res, handled := vm.execCall(f, code)
			if handled {
				return res
			}
		case bytecode.OpCallMethod:
			res, handled := vm.execCallMethod(f, code)
			if handled {
				return res
			}
		case bytecode.OpCallMethodDynamic:
			res, handled := vm.execCallMethodDynamic(f, code)
			if handled {
				return res
			}
		case bytecode.OpCallDynamic:
			res, handled := vm.execCallDynamic(f, code)
			if handled {
				return res
			}
		case bytecode.OpCallBuiltin:
			res, handled := vm.execCallBuiltin(f, code)
			if handled {
				return res
			}

		case bytecode.OpReturn:
			return Result{Value: value.NullValue(), State: StateReturning}
		case bytecode.OpReturnValue:
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "return_value")
			}
			return Result{Value: v, State: StateReturning}

		case bytecode.OpNew:
			res, handled := vm.execNew(f, code)
			if handled {
				return res
			}
		case bytecode.OpDelete:
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "delete")
			}
			if obj := valueAsObject(v); obj != nil {
				if r := vm.DeleteInstance(obj); r != nil {
					return *r
				}
			}
		case bytecode.OpTypeOf:
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "type_of")
			}
			vm.push(value.StringValue(v.TypeName()))
		case bytecode.OpInstanceOf:
			idx := readU16(code, f.PC)
			f.PC += 2
			className := f.DefiningClass.Unit.Strings.Get(int(idx))
			v, ok := vm.pop()
			if !ok {
				return vm.fault(f, vmerrors.StackUnderflow, "instance_of")
			}
			obj := valueAsObject(v)
			vm.push(value.BoolValue(obj != nil && obj.Class.IsInstanceOf(className)))
		case bytecode.OpLoadClass:
			idx := readU16(code, f.PC)
			f.PC += 2
			className := f.DefiningClass.Unit.Strings.Get(int(idx))
			vm.push(vm.loadClassFirst(className))
		case bytecode.OpLoadClassMember:
			cIdx := readU16(code, f.PC)
			f.PC += 2
			mIdx := readU16(code, f.PC)
			f.PC += 2
			className := f.DefiningClass.Unit.Strings.Get(int(cIdx))
			memberName := f.DefiningClass.Unit.Strings.Get(int(mIdx))
			vm.push(vm.loadClassMember(className, memberName))

		case bytecode.OpTerminate:
			return Result{Value: value.NullValue(), State: StateTerminated}

		default:
			return vm.fault(f, vmerrors.CorruptedBytecode, "unknown opcode")
		}
	}
}

func (vm *VM) fault(f *frame, kind vmerrors.RuntimeKind, detail string) Result {
	trace := vm.captureTrace(f)
	return Result{State: StateFaulted, Err: vmerrors.NewFatalError(kind, detail, trace, nil)}
}

func (vm *VM) faultErr(f *frame, err error) Result {
	if re, ok := err.(*vmerrors.RuntimeError); ok {
		if !re.Kind.Fatal() {
			return Result{State: StateFaulted, Err: re}
		}
	}
	trace := vm.captureTrace(f)
	return Result{State: StateFaulted, Err: vmerrors.NewFatalError(vmerrors.CorruptedBytecode, err.Error(), trace, err)}
}

func (vm *VM) captureTrace(cur *frame) vmerrors.StackTrace {
	trace := make(vmerrors.StackTrace, 0, len(vm.frames))
	for _, fr := range vm.frames {
		trace = append(trace, vmerrors.StackFrame{
			FunctionName: fr.Function.Name,
			ClassName:    fr.DefiningClass.Name(),
			Line:         fr.currentLine(),
		})
	}
	_ = cur
	return trace
}

func valueAsObject(v value.Value) *classmodel.RuntimeObject {
	if v.Kind != value.Object || v.Obj == nil {
		return nil
	}
	obj, _ := v.Obj.(*classmodel.RuntimeObject)
	return obj
}

// --- little-endian operand readers (spec §6.1 "Little-endian throughout") ---

func readU16(code []byte, pos int) uint16  { return binary.LittleEndian.Uint16(code[pos : pos+2]) }
func readI16(code []byte, pos int) int16   { return int16(readU16(code, pos)) }
func readI32(code []byte, pos int) int32   { return int32(binary.LittleEndian.Uint32(code[pos : pos+4])) }
func readF64(code []byte, pos int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[pos : pos+8]))
}
