package interp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/interp"
	"github.com/magoolation/intmud.net-sub002/internal/parser"
	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// newVM compiles every class in src, resolves it, and returns a VM whose
// program has already been loaded (common initializers run).
func newVM(t *testing.T, src string, opts ...interp.Option) *interp.VM {
	t.Helper()
	p := parser.New(src, "t.script")
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	loader := classmodel.NewLoader()
	for _, decl := range file.Classes {
		unit, err := bytecode.CompileClass(decl)
		require.NoError(t, err)
		loader.AddUnit(unit)
	}
	require.NoError(t, loader.Resolve())

	vm := interp.New(loader, opts...)
	vm.LoadProgram()
	return vm
}

// A `varconst`'s thunk runs at most once per program, even across many
// reads — its result is memoized on the VM (spec §4.3.3).
func TestVarconstThunkMemoizedAcrossCalls(t *testing.T) {
	var outputs []string
	vm := newVM(t, `
classe c {
varconst saudacao = escrever("oi")
func ler:
ret saudacao
}
`, interp.WithOutput(func(s string) { outputs = append(outputs, s) }))

	obj, res := vm.CreateInstance("c", nil)
	require.Nil(t, res)

	r := vm.CallMethod(obj, "ler", nil)
	require.Equal(t, interp.StateReturning, r.State)
	r = vm.CallMethod(obj, "ler", nil)
	require.Equal(t, interp.StateReturning, r.State)

	require.Len(t, outputs, 1, "the varconst thunk's escrever side effect must run exactly once")
}

// escrever routes its argument through the VM's OnOutput sink.
func TestEscreverRoutesThroughOutputSink(t *testing.T) {
	var outputs []string
	vm := newVM(t, `
classe c {
func falar:
escrever("ola")
ret 0
}
`, interp.WithOutput(func(s string) { outputs = append(outputs, s) }))

	obj, res := vm.CreateInstance("c", nil)
	require.Nil(t, res)

	r := vm.CallMethod(obj, "falar", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, []string{"ola"}, outputs)
}

// A `varfunc` is readable as a bare value, with no call syntax, and the
// bare read still dispatches to the most-derived override (GLOSSARY
// "VarFunc": "no parentheses required on read"; spec §4.4 "Method
// dispatch" applies equally to this implicit-call form).
func TestVarFuncReadableWithoutParens(t *testing.T) {
	vm := newVM(t, `
classe base {
varfunc nome:
ret "base"
func chamaSemParen:
ret nome
}
classe derived herda base {
varfunc nome:
ret "derived"
}
`)
	baseObj, _ := vm.CreateInstance("base", nil)
	r := vm.CallMethod(baseObj, "chamaSemParen", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, "base", r.Value.S)

	derivedObj, _ := vm.CreateInstance("derived", nil)
	r = vm.CallMethod(derivedObj, "chamaSemParen", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, "derived", r.Value.S, "inherited chamaSemParen must still dispatch to the most-derived nome override")
}

// The same no-parens read convention applies through an explicit `este.`
// member access, not just a bare identifier.
func TestVarFuncReadableViaThisMemberAccess(t *testing.T) {
	vm := newVM(t, `
classe c {
varfunc area:
ret 42
func ler:
ret este.area
}
`)
	obj, _ := vm.CreateInstance("c", nil)
	r := vm.CallMethod(obj, "ler", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, int64(42), r.Value.I)
}

// A plain (non-virtual) func with no matching field/common/varfunc name
// still resolves to null on a bare read — only varfunc gets the implicit
// call convention.
func TestPlainFuncNameReadWithoutCallStaysNull(t *testing.T) {
	vm := newVM(t, `
classe c {
func area:
ret 42
func ler:
ret area
}
`)
	obj, _ := vm.CreateInstance("c", nil)
	r := vm.CallMethod(obj, "ler", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, value.Null, r.Value.Kind)
}

// Member access on an object other than `este` reads that object's own
// field, not the calling frame's receiver, and leaves the operand stack
// balanced for the surrounding arithmetic (a plain `OpLoadField` must
// consume the receiver it was pushed with).
func TestMemberAccessOnForeignObjectReadsItsOwnField(t *testing.T) {
	vm := newVM(t, `
classe ponto {
int x
func def:
x = arg0
ret 0
}
classe c {
func soma:
ponto p = novo ponto()
p.def(arg0)
ret p.x + 1
}
`)
	obj, _ := vm.CreateInstance("c", nil)
	r := vm.CallMethod(obj, "soma", []value.Value{value.IntValue(41)})
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, int64(42), r.Value.I)
}

// ler pulls one value from the VM's installed input provider (spec §6.4
// "setInput(provider)"), the read-side counterpart to escrever.
func TestLerRoutesThroughInputProvider(t *testing.T) {
	lines := []string{"primeira", "segunda"}
	vm := newVM(t, `
classe c {
func duasLinhas:
texto a = ler()
texto b = ler()
ret a + "-" + b
}
`, interp.WithInput(func() string {
		v := lines[0]
		lines = lines[1:]
		return v
	}))

	obj, _ := vm.CreateInstance("c", nil)
	r := vm.CallMethod(obj, "duasLinhas", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, "primeira-segunda", r.Value.S)
}

// With no input provider installed, ler returns the empty string rather
// than faulting.
func TestLerWithNoProviderReturnsEmptyString(t *testing.T) {
	vm := newVM(t, `
classe c {
func tentar:
ret ler()
}
`)
	obj, _ := vm.CreateInstance("c", nil)
	r := vm.CallMethod(obj, "tentar", nil)
	require.Equal(t, interp.StateReturning, r.State)
	require.Equal(t, "", r.Value.S)
}

// Integer division truncates towards zero and modulo takes the dividend's
// sign (spec §4.4).
func TestIntegerDivisionAndModulo(t *testing.T) {
	vm := newVM(t, `
classe c {
func div:
ret arg0 / arg1
func mod:
ret arg0 % arg1
}
`)
	obj, _ := vm.CreateInstance("c", nil)

	r := vm.CallMethod(obj, "div", []value.Value{value.IntValue(-7), value.IntValue(2)})
	require.Equal(t, int64(-3), r.Value.I)

	r = vm.CallMethod(obj, "mod", []value.Value{value.IntValue(-7), value.IntValue(2)})
	require.Equal(t, int64(-1), r.Value.I)
}

// A typed instance field truncates on store to its declared width (spec
// §4.4); int8 wraps like a signed byte.
func TestTypedFieldTruncationOnStore(t *testing.T) {
	vm := newVM(t, `
classe c {
int8 b
func set:
b = arg0
ret b
}
`)
	obj, _ := vm.CreateInstance("c", nil)

	r := vm.CallMethod(obj, "set", []value.Value{value.IntValue(200)})
	require.Equal(t, int64(-56), r.Value.I)
}

// The instruction quota is one running counter shared across nested
// calls within a single top-level invocation, not reset per frame (spec
// §4.4 "Instruction budgeting").
func TestQuotaSharedAcrossNestedCalls(t *testing.T) {
	vm := newVM(t, `
classe c {
func interno:
enquanto 1
efim
ret 0
func externo:
ret interno()
}
`, interp.WithMaxInstructions(500))
	obj, _ := vm.CreateInstance("c", nil)

	r := vm.CallMethod(obj, "externo", nil)
	require.Equal(t, interp.StateQuota, r.State)
	require.Error(t, r.Err)
}

// Each top-level CallMethod gets a fresh quota budget: a call that would
// exceed the budget on its own does not carry over leftover count from an
// unrelated prior top-level call.
func TestQuotaResetsBetweenTopLevelCalls(t *testing.T) {
	vm := newVM(t, `
classe c {
func curto:
ret arg0 + 1
}
`, interp.WithMaxInstructions(1000))
	obj, _ := vm.CreateInstance("c", nil)

	for i := 0; i < 50; i++ {
		r := vm.CallMethod(obj, "curto", []value.Value{value.IntValue(int64(i))})
		require.Equal(t, interp.StateReturning, r.State)
		require.Equal(t, int64(i+1), r.Value.I)
	}
}
