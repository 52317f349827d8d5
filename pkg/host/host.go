// Package host is the embedding-facing surface a host program drives to
// compile, link, and run scripts against this module (spec §6.4), the way
// the teacher's pkg/dwscript wraps its own lexer/parser/interp pipeline
// behind one entry type.
package host

import (
	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/interp"
	"github.com/magoolation/intmud.net-sub002/internal/parser"
	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// Value re-exports the engine's tagged-union value type so callers never
// need to import internal/value directly.
type Value = value.Value

// Object is a live script-side instance.
type Object = classmodel.RuntimeObject

// Engine owns a loader and a VM bound to it; it is the unit of isolation —
// two Engines never share classes or object registries.
type Engine struct {
	loader *classmodel.Loader
	vm     *interp.VM
}

// New creates an empty Engine. Call Compile for each source file, then
// Load once all units are in, before CreateInstance/CallMethod.
func New(opts ...interp.Option) *Engine {
	loader := classmodel.NewLoader()
	return &Engine{
		loader: loader,
		vm:     interp.New(loader, opts...),
	}
}

// Compile parses fileName's source and compiles every class declaration it
// contains, registering each with the engine's loader (spec §6.4
// "compile(source, fileName) -> CompiledUnit[]"). Call Load after the last
// Compile to resolve inheritance across all registered units.
func (e *Engine) Compile(source, fileName string) ([]*bytecode.CompiledUnit, error) {
	p := parser.New(source, fileName)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}

	units := make([]*bytecode.CompiledUnit, 0, len(file.Classes))
	for _, decl := range file.Classes {
		unit, err := bytecode.CompileClass(decl)
		if err != nil {
			return nil, err
		}
		e.loader.AddUnit(unit)
		units = append(units, unit)
	}
	return units, nil
}

// Load resolves every compiled class's base-name references and runs each
// class's common-variable initializers once (spec §6.4 "loadProgram(units,
// options)"). Call once, after every source file has been Compiled.
func (e *Engine) Load() error {
	if err := e.loader.Resolve(); err != nil {
		return err
	}
	e.vm.LoadProgram()
	return nil
}

// CreateInstance allocates and constructs a new className object (spec
// §6.4 "createInstance(className, args) -> Object").
func (e *Engine) CreateInstance(className string, args []Value) (*Object, error) {
	obj, res := e.vm.CreateInstance(className, args)
	if res != nil && res.Err != nil {
		return obj, res.Err
	}
	return obj, nil
}

// CallMethod invokes methodName on obj (spec §6.4 "callMethod(object,
// methodName, args) -> Value").
func (e *Engine) CallMethod(obj *Object, methodName string, args []Value) (Value, error) {
	res := e.vm.CallMethod(obj, methodName, args)
	if res.Err != nil {
		return res.Value, res.Err
	}
	return res.Value, nil
}

// DeleteInstance runs obj's destructor convention (if any) and marks it
// deleted.
func (e *Engine) DeleteInstance(obj *Object) error {
	if res := e.vm.DeleteInstance(obj); res != nil {
		return res.Err
	}
	return nil
}

// SetInput installs the provider CallBuiltin's read-style builtins draw
// from (spec §6.4 "setInput(provider)").
func (e *Engine) SetInput(provider func() string) {
	interp.WithInput(provider)(e.vm)
}

// OnOutput installs sink as the destination for script-side output calls
// (spec §6.4 "onOutput(sink)").
func (e *Engine) OnOutput(sink func(string)) {
	interp.WithOutput(sink)(e.vm)
}

// SetMaxInstructions bounds the per-top-level-call instruction budget
// (spec §6.4 "setMaxInstructions(n)"); 0 disables the budget.
func (e *Engine) SetMaxInstructions(n int64) {
	interp.WithMaxInstructions(n)(e.vm)
}

// Classes returns the engine's loader, for host code that needs direct
// class introspection ($Classe-style lookups, IsInstanceOf checks).
func (e *Engine) Classes() *classmodel.Loader { return e.loader }
