package host_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magoolation/intmud.net-sub002/internal/value"
	"github.com/magoolation/intmud.net-sub002/pkg/host"
)

// compile builds an Engine from one source file and resolves it, failing
// the test on any compile or link error.
func compile(t *testing.T, src string) *host.Engine {
	t.Helper()
	e := host.New()
	_, err := e.Compile(src, "t.script")
	require.NoError(t, err)
	require.NoError(t, e.Load())
	return e
}

// S1: arithmetic and positional argument access.
func TestScenarioArithmeticAndArgs(t *testing.T) {
	e := compile(t, `
classe c {
func soma:
ret arg0 + arg1
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "soma", []host.Value{value.IntValue(3), value.IntValue(4)})
	require.NoError(t, err)
	require.Equal(t, int64(7), v.I)
}

// S2: a while loop accumulating a running sum.
func TestScenarioWhileSum(t *testing.T) {
	e := compile(t, `
classe c {
func soma:
int total = 0
int i = 0
enquanto i < arg0
total = total + i
i = i + 1
efim
ret total
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "soma", []host.Value{value.IntValue(5)})
	require.NoError(t, err)
	require.Equal(t, int64(0+1+2+3+4), v.I)
}

// S3: a conditional early return.
func TestScenarioConditionalReturn(t *testing.T) {
	e := compile(t, `
classe c {
func abs:
se arg0 < 0
ret -arg0
fimse
ret arg0
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "abs", []host.Value{value.IntValue(-7)})
	require.NoError(t, err)
	require.Equal(t, int64(7), v.I)

	v, err = e.CallMethod(obj, "abs", []host.Value{value.IntValue(7)})
	require.NoError(t, err)
	require.Equal(t, int64(7), v.I)
}

// S4: virtual dispatch — a base method calling a variable-function that a
// derived class overrides must resolve to the derived implementation when
// invoked on a derived instance, and to the base implementation when
// invoked on a plain base instance.
func TestScenarioVirtualDispatch(t *testing.T) {
	e := compile(t, `
classe base {
varfunc nome:
ret "base"
func chama:
ret nome()
}
classe derived herda base {
varfunc nome:
ret "derived"
}
`)
	baseObj, err := e.CreateInstance("base", nil)
	require.NoError(t, err)
	v, err := e.CallMethod(baseObj, "chama", nil)
	require.NoError(t, err)
	require.Equal(t, "base", v.S)

	derivedObj, err := e.CreateInstance("derived", nil)
	require.NoError(t, err)
	v, err = e.CallMethod(derivedObj, "chama", nil)
	require.NoError(t, err)
	require.Equal(t, "derived", v.S)

	v, err = e.CallMethod(derivedObj, "nome", nil)
	require.NoError(t, err)
	require.Equal(t, "derived", v.S)
}

// S5: dynamic name construction reads and writes an instance field chosen
// at runtime by splicing a numeric suffix onto a literal prefix.
func TestScenarioDynamicNameReadWrite(t *testing.T) {
	e := compile(t, `
classe c {
int passo0
int passo1
int passo2
func set:
passo[arg0] = arg1
ret 0
func get:
ret passo[arg0]
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	_, err = e.CallMethod(obj, "set", []host.Value{value.IntValue(1), value.IntValue(42)})
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "get", []host.Value{value.IntValue(1)})
	require.NoError(t, err)
	require.Equal(t, int64(42), v.I)

	v, err = e.CallMethod(obj, "get", []host.Value{value.IntValue(0)})
	require.NoError(t, err)
	require.Equal(t, int64(0), v.I)
}

// S6: a switch over an integer discriminant, falling through to its
// default arm when no case label matches.
func TestScenarioSwitchWithDefault(t *testing.T) {
	e := compile(t, `
classe c {
func nome:
int x = arg0
casovar x {
casose "1":
ret "um"
casose "2":
ret "dois"
casose:
ret "outro"
}
ret "inalcancavel"
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "nome", []host.Value{value.IntValue(1)})
	require.NoError(t, err)
	require.Equal(t, "um", v.S)

	v, err = e.CallMethod(obj, "nome", []host.Value{value.IntValue(2)})
	require.NoError(t, err)
	require.Equal(t, "dois", v.S)

	v, err = e.CallMethod(obj, "nome", []host.Value{value.IntValue(9)})
	require.NoError(t, err)
	require.Equal(t, "outro", v.S)
}

// S7: postfix increment yields the pre-increment value while prefix
// increment yields the post-increment value, and both mutate the local.
func TestScenarioPostfixVsPrefixIncDec(t *testing.T) {
	e := compile(t, `
classe c {
func test:
int i = 5
int a = i++
int b = ++i
ret a*100 + b
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "test", nil)
	require.NoError(t, err)
	require.Equal(t, int64(5*100+7), v.I)
}

// S8: string concatenation activates whenever either Add operand is a
// string, converting the other side to text.
func TestScenarioStringConcatenation(t *testing.T) {
	e := compile(t, `
classe c {
func greet:
texto s = "ola, " + arg0
ret s + "!"
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	v, err := e.CallMethod(obj, "greet", []host.Value{value.StringValue("mundo")})
	require.NoError(t, err)
	require.Equal(t, "ola, mundo!", v.S)
}

// DeleteInstance is idempotent (testable property 10): calling it twice
// must not fault or double-run the destructor convention.
func TestDeleteInstanceIdempotent(t *testing.T) {
	e := compile(t, `
classe c {
func apagar:
ret 0
}
`)
	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	require.NoError(t, e.DeleteInstance(obj))
	require.True(t, obj.IsDeleted())
	require.NoError(t, e.DeleteInstance(obj))
}

// SetMaxInstructions bounds a runaway loop (testable property 8).
func TestInstructionQuota(t *testing.T) {
	e := host.New()
	_, err := e.Compile(`
classe c {
func loop:
enquanto 1
efim
ret 0
}
`, "t.script")
	require.NoError(t, err)
	require.NoError(t, e.Load())
	e.SetMaxInstructions(1000)

	obj, err := e.CreateInstance("c", nil)
	require.NoError(t, err)

	_, err = e.CallMethod(obj, "loop", nil)
	require.Error(t, err)
}
