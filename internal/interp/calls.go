package interp

import (
	"github.com/magoolation/intmud.net-sub002/internal/builtins"
	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/value"
	"github.com/magoolation/intmud.net-sub002/internal/vmerrors"
)

// popArgs pops n values off the operand stack in call order (they were
// pushed left to right, so the first argument sits deepest).
func (vm *VM) popArgs(n int) ([]value.Value, bool) {
	if len(vm.stack) < n {
		return nil, false
	}
	args := make([]value.Value, n)
	copy(args, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return args, true
}

// dispatch resolves methodName on obj's ancestor chain (most-derived
// first, testable property 6) and runs it. ok is false when the call
// could not even be attempted (missing receiver or unresolved name) — per
// spec §7 this is source-language misuse, not an interpreter fault, and
// resolves to null rather than raising an error.
func (vm *VM) dispatch(obj *classmodel.RuntimeObject, methodName string, args []value.Value) (res Result, ok bool) {
	if obj == nil || obj.Deleted {
		return Result{}, false
	}
	fn, owner := obj.Class.FindFunction(methodName)
	if fn == nil {
		return Result{}, false
	}
	return vm.invoke(owner, fn, obj, args), true
}

// execCall handles the plain `Call` opcode: no receiver is pushed, so the
// current frame's own receiver is used (a same-object helper-method call).
func (vm *VM) execCall(f *frame, code []byte) (Result, bool) {
	nameIdx := readU16(code, f.PC)
	f.PC += 2
	argc := int(code[f.PC])
	f.PC++
	name := f.DefiningClass.Unit.Strings.Get(int(nameIdx))
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call"), true
	}
	res, dispatched := vm.dispatch(f.Receiver, name, args)
	if !dispatched {
		vm.push(value.NullValue())
		return Result{}, false
	}
	if res.State != StateReturning {
		return res, true
	}
	vm.push(res.Value)
	return Result{}, false
}

func (vm *VM) execCallMethod(f *frame, code []byte) (Result, bool) {
	nameIdx := readU16(code, f.PC)
	f.PC += 2
	argc := int(code[f.PC])
	f.PC++
	name := f.DefiningClass.Unit.Strings.Get(int(nameIdx))
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_method"), true
	}
	recv, ok := vm.pop()
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_method receiver"), true
	}
	res, dispatched := vm.dispatch(valueAsObject(recv), name, args)
	if !dispatched {
		vm.push(value.NullValue())
		return Result{}, false
	}
	if res.State != StateReturning {
		return res, true
	}
	vm.push(res.Value)
	return Result{}, false
}

// execCallMethodDynamic: stack holds [receiver, arg0..argN-1, nameString].
func (vm *VM) execCallMethodDynamic(f *frame, code []byte) (Result, bool) {
	argc := int(code[f.PC])
	f.PC++
	nameVal, ok := vm.pop()
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_method_dyn name"), true
	}
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_method_dyn"), true
	}
	recv, ok := vm.pop()
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_method_dyn receiver"), true
	}
	res, dispatched := vm.dispatch(valueAsObject(recv), nameVal.Stringify(), args)
	if !dispatched {
		vm.push(value.NullValue())
		return Result{}, false
	}
	if res.State != StateReturning {
		return res, true
	}
	vm.push(res.Value)
	return Result{}, false
}

// invocarMethodName is the fixed convention this implementation resolves
// OpCallDynamic's "computed callable value" corner under: when the
// callable is an object reference, the object's own "invocar" method (if
// declared) is what gets invoked. See DESIGN.md.
const invocarMethodName = "invocar"

// execCallDynamic: stack holds [callable, arg0..argN-1]; the callable
// itself carries no method name (spec §9 design notes: callable dispatch
// is tagged-opcode based, not a first-class function value), so an object
// callable is invoked through the invocarMethodName convention.
func (vm *VM) execCallDynamic(f *frame, code []byte) (Result, bool) {
	argc := int(code[f.PC])
	f.PC++
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_dynamic"), true
	}
	callee, ok := vm.pop()
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_dynamic callee"), true
	}
	obj := valueAsObject(callee)
	if obj == nil {
		vm.push(value.NullValue())
		return Result{}, false
	}
	res, dispatched := vm.dispatch(obj, invocarMethodName, args)
	if !dispatched {
		vm.push(value.NullValue())
		return Result{}, false
	}
	if res.State != StateReturning {
		return res, true
	}
	vm.push(res.Value)
	return Result{}, false
}

// execCallBuiltin dispatches to the builtins registry (spec §4.4: "each
// built-in counts as one instruction" — already true here since the whole
// call is one opcode fetch/decode/execute cycle).
func (vm *VM) execCallBuiltin(f *frame, code []byte) (Result, bool) {
	id := int(readU16(code, f.PC))
	f.PC += 2
	argc := int(code[f.PC])
	f.PC++
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "call_builtin"), true
	}
	switch builtins.NameByID(id) {
	case "escrever":
		if len(args) > 0 {
			vm.emit(args[0].Stringify())
		}
		vm.push(value.NullValue())
		return Result{}, false
	case "ler":
		vm.push(value.StringValue(vm.readln()))
		return Result{}, false
	}
	v, err := builtins.Call(id, args)
	if err != nil {
		vm.push(value.NullValue())
		return Result{}, false
	}
	vm.push(v)
	return Result{}, false
}

// execNew implements `New <class>(argc)` (spec §4.4 "Instance creation").
func (vm *VM) execNew(f *frame, code []byte) (Result, bool) {
	nameIdx := readU16(code, f.PC)
	f.PC += 2
	argc := int(code[f.PC])
	f.PC++
	className := f.DefiningClass.Unit.Strings.Get(int(nameIdx))
	args, ok := vm.popArgs(argc)
	if !ok {
		return vm.fault(f, vmerrors.StackUnderflow, "new"), true
	}
	obj, res := vm.CreateInstance(className, args)
	if res != nil {
		return *res, true
	}
	vm.push(value.ObjectValue(obj))
	return Result{}, false
}

// --- field access ---

// loadField implements spec §4.4's read-side precedence for a known
// member name: the instance's own storage first, then (if name names a
// `comum` variable anywhere in the ancestor chain) the shared cell, then
// — per the GLOSSARY's VarFunc entry ("intended to be called as if it
// were a variable, no parentheses required on read") — a zero-arg
// dispatch to the most-derived virtual-function override of that name,
// defaulting to null when none of those resolve (spec §7: "missing names
// ... resolve to null"). The function case reuses `invoke` directly
// rather than `dispatch`/`CallMethod` because the receiver's class (and
// thus the most-derived override) is already known here.
func (vm *VM) loadField(obj *classmodel.RuntimeObject, name string) Result {
	if obj == nil {
		return Result{Value: value.NullValue(), State: StateReturning}
	}
	if obj.HasField(name) {
		return Result{Value: obj.GetField(name), State: StateReturning}
	}
	if slot, _, ok := obj.Class.FindVariable(name); ok {
		if slot.Common {
			if cell, ok := obj.Class.CommonSlot(name); ok {
				return Result{Value: *cell, State: StateReturning}
			}
		}
		return Result{Value: value.NullValue(), State: StateReturning}
	}
	if fn, owner := obj.Class.FindFunction(name); fn != nil && fn.Virtual {
		return vm.invoke(owner, fn, obj, nil)
	}
	return Result{Value: value.NullValue(), State: StateReturning}
}

// storeField implements the write-side counterpart: a declared `comum`
// variable writes through the shared cell (truncated to its typed storage
// width); a declared instance variable writes (truncated) into the
// object's own storage; an undeclared name creates a fresh instance field
// (spec §4.4: "a store to an unknown dynamic name creates an instance
// field on the current receiver ... or fails otherwise").
func (vm *VM) storeField(obj *classmodel.RuntimeObject, name string, v value.Value) error {
	if obj == nil {
		return vmerrors.NewRuntimeError(vmerrors.UncallableValue, "store on null receiver")
	}
	if slot, _, ok := obj.Class.FindVariable(name); ok {
		tv := truncateToType(slot.TypeName, v)
		if slot.Common {
			if cell, ok := obj.Class.CommonSlot(name); ok {
				*cell = tv
				return nil
			}
		}
		obj.SetField(name, tv)
		return nil
	}
	obj.SetField(name, v)
	return nil
}

// --- global/dynamic name resolution (spec §4.4) ---

// resolveDynamicLoad implements the fallback order: locals (by name, in
// the current frame) -> instance fields of the receiver (ancestor chain)
// -> class-level commons (ancestor chain, folded into the field check
// already) -> a bare reference to one of the receiver's `varfunc`
// overrides (GLOSSARY "VarFunc": readable without call syntax) ->
// same-class constants -> cross-class globals.
func (vm *VM) resolveDynamicLoad(f *frame, name string) Result {
	if idx, ok := namedLocalIndex(f, name); ok {
		return Result{Value: f.Locals[idx], State: StateReturning}
	}
	if f.Receiver != nil {
		if f.Receiver.HasField(name) {
			return Result{Value: f.Receiver.GetField(name), State: StateReturning}
		}
		if slot, _, ok := f.Receiver.Class.FindVariable(name); ok {
			if slot.Common {
				if cell, ok := f.Receiver.Class.CommonSlot(name); ok {
					return Result{Value: *cell, State: StateReturning}
				}
			}
			return Result{Value: value.NullValue(), State: StateReturning}
		}
		if fn, owner := f.Receiver.Class.FindFunction(name); fn != nil && fn.Virtual {
			return vm.invoke(owner, fn, f.Receiver, nil)
		}
	}
	if c, owner := f.DefiningClass.FindConstant(name); c != nil {
		return Result{Value: vm.evalConstant(owner, c), State: StateReturning}
	}
	return Result{Value: vm.resolveCrossClassGlobal(name), State: StateReturning}
}

func (vm *VM) resolveDynamicStore(f *frame, name string, v value.Value) {
	if idx, ok := namedLocalIndex(f, name); ok {
		f.Locals[idx] = v
		return
	}
	if f.Receiver != nil {
		_ = vm.storeField(f.Receiver, name, v)
		return
	}
}

func namedLocalIndex(f *frame, name string) (int, bool) {
	for _, d := range f.Function.Locals {
		if equalFold(d.Name, name) {
			return d.Index, true
		}
	}
	return 0, false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// resolveCrossClassGlobal implements the final, least-specific fallback:
// search every loaded class (sorted by name for deterministic results,
// testable property 2) for a `comum` variable or constant of this name.
func (vm *VM) resolveCrossClassGlobal(name string) value.Value {
	if vm.Loader == nil {
		return value.NullValue()
	}
	names := sortedClassNames(vm.Loader)
	for _, cn := range names {
		class, _ := vm.Loader.Lookup(cn)
		if slot, owner, ok := class.FindVariable(name); ok && slot.Common {
			if cell, ok := owner.CommonSlot(name); ok {
				return *cell
			}
		}
	}
	for _, cn := range names {
		class, _ := vm.Loader.Lookup(cn)
		if c, owner := class.FindConstant(name); c != nil {
			return vm.evalConstant(owner, c)
		}
	}
	return value.NullValue()
}

func sortedClassNames(l *classmodel.Loader) []string {
	all := l.All()
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name())
	}
	// simple insertion sort: class counts are small (one source tree)
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// evalConstant evaluates (and memoizes) a constant's value, running its
// bytecode thunk with no receiver the first time it is read (spec
// §4.3.3: "a bytecode thunk executed lazily at first use").
func (vm *VM) evalConstant(owner *classmodel.Class, c *bytecode.Constant) value.Value {
	if c.Kind != bytecode.ConstThunk {
		return c.ConstantValue()
	}
	if v, ok := vm.constCache[c]; ok {
		return v
	}
	res := vm.invoke(owner, c.Thunk, nil, nil)
	v := value.NullValue()
	if res.State == StateReturning {
		v = res.Value
	}
	if vm.constCache == nil {
		vm.constCache = make(map[*bytecode.Constant]value.Value)
	}
	vm.constCache[c] = v
	return v
}

// --- indexing ---

// Indexable is implemented by an object-kind value (a value.ObjectRef) that wants
// random-access get/set through OpLoadIndex/OpStoreIndex (vectors, object
// lists); the domain handler library (spec §1, external collaborator)
// implements this for its own types. The core never assumes every object
// supports it.
type Indexable interface {
	Get(i int) value.Value
	Set(i int, v value.Value)
}

// loadIndex implements spec §7's "index out of range on typed vector
// surfaces as a default value per type": out-of-range or unindexable
// operands yield null/empty rather than an error.
func (vm *VM) loadIndex(coll, idx value.Value) value.Value {
	i := int(idx.AsInt())
	switch coll.Kind {
	case value.String:
		r := []rune(coll.S)
		if i < 0 || i >= len(r) {
			return value.StringValue("")
		}
		return value.StringValue(string(r[i]))
	case value.Handler:
		if h, ok := coll.Handle.Handler.(builtins.TypeHandler); ok {
			v, err := h.ExecuteFunction(coll.Handle.Payload, "obterindice", []value.Value{idx})
			if err != nil {
				return value.NullValue()
			}
			return v
		}
	case value.Object:
		if ix, ok := coll.Obj.(Indexable); ok {
			return ix.Get(i)
		}
	}
	return value.NullValue()
}

func (vm *VM) storeIndex(coll, idx, v value.Value) {
	i := int(idx.AsInt())
	switch coll.Kind {
	case value.Handler:
		if h, ok := coll.Handle.Handler.(builtins.TypeHandler); ok {
			_, _ = h.ExecuteFunction(coll.Handle.Payload, "definirindice", []value.Value{idx, v})
		}
	case value.Object:
		if ix, ok := coll.Obj.(Indexable); ok {
			ix.Set(i, v)
		}
	}
}

// --- class-level access ($Classe, Classe:membro) ---

func (vm *VM) loadClassFirst(className string) value.Value {
	class, ok := vm.Loader.Lookup(className)
	if !ok {
		return value.NullValue()
	}
	obj := class.First()
	if obj == nil {
		return value.NullValue()
	}
	return value.ObjectValue(obj)
}

func (vm *VM) loadClassMember(className, memberName string) value.Value {
	class, ok := vm.Loader.Lookup(className)
	if !ok {
		return value.NullValue()
	}
	if slot, owner, ok := class.FindVariable(memberName); ok && slot.Common {
		if cell, ok := owner.CommonSlot(memberName); ok {
			return *cell
		}
	}
	if c, owner := class.FindConstant(memberName); c != nil {
		return vm.evalConstant(owner, c)
	}
	return value.NullValue()
}
