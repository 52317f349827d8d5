package bytecode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/parser"
)

func compileOne(t *testing.T, src string) *bytecode.CompiledUnit {
	t.Helper()
	p := parser.New(src, "t.script")
	file := p.ParseFile()
	require.Empty(t, p.Errors())
	require.Len(t, file.Classes, 1)
	unit, err := bytecode.CompileClass(file.Classes[0])
	require.NoError(t, err)
	return unit
}

// Compiling the same source twice must produce byte-identical code and
// the same string-pool assignment order (testable property 2: compiler
// determinism; property 3: monotonic interning).
func TestCompilerDeterminism(t *testing.T) {
	src := `
classe c {
func soma:
ret arg0 + arg1
}
`
	a := compileOne(t, src)
	b := compileOne(t, src)

	fa := a.Functions["soma"]
	fb := b.Functions["soma"]
	require.Equal(t, fa.Code, fb.Code)
	require.Equal(t, a.Strings.All(), b.Strings.All())
}

// String-pool interning assigns indices in first-use order and never
// duplicates an already-seen string (testable property 3).
func TestStringPoolInterningOrder(t *testing.T) {
	unit := compileOne(t, `
classe c {
func nomes:
ret "um" + "dois" + "um"
}
`)
	strs := unit.Strings.All()
	require.Contains(t, strs, "um")
	require.Contains(t, strs, "dois")

	umIdx := -1
	for i, s := range strs {
		if s == "um" {
			umIdx = i
			break
		}
	}
	require.NotEqual(t, -1, umIdx)
	doisIdx := -1
	for i, s := range strs {
		if s == "dois" {
			doisIdx = i
			break
		}
	}
	require.Less(t, umIdx, doisIdx, "strings must be interned in first-use order")
	count := 0
	for _, s := range strs {
		if s == "um" {
			count++
		}
	}
	require.Equal(t, 1, count, "interning must not duplicate an already-seen string")
}

// Every jump instruction's target, computed relative to the byte
// immediately following its operand, must land on a valid instruction
// boundary within the function (testable property 4).
func TestJumpTargetsLandOnInstructionBoundaries(t *testing.T) {
	unit := compileOne(t, `
classe c {
func abs:
se arg0 < 0
ret -arg0
fimse
ret arg0
}
`)
	fn := unit.Functions["abs"]
	boundaries := instructionBoundaries(fn.Code)

	for offset := 0; offset < len(fn.Code); {
		op := bytecode.Op(fn.Code[offset])
		width := op.OperandWidth()
		switch op {
		case bytecode.OpJump, bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse,
			bytecode.OpJumpIfNull, bytecode.OpJumpIfNotNull:
			operandPos := offset + 1
			rel := int16(uint16(fn.Code[operandPos]) | uint16(fn.Code[operandPos+1])<<8)
			target := operandPos + 2 + int(rel)
			require.Contains(t, boundaries, target, "jump at offset %d must land on an instruction boundary", offset)
		}
		offset += 1 + width
	}
}

func instructionBoundaries(code []byte) map[int]bool {
	set := make(map[int]bool)
	for offset := 0; offset <= len(code); {
		set[offset] = true
		if offset == len(code) {
			break
		}
		op := bytecode.Op(code[offset])
		offset += 1 + op.OperandWidth()
	}
	return set
}

// Each function's locals are scoped to that function alone — a local
// declared inside one method must not leak an index collision into an
// unrelated sibling method compiled from the same class (testable
// property 5: scope discipline).
func TestScopeDisciplineBetweenFunctions(t *testing.T) {
	unit := compileOne(t, `
classe c {
func a:
int x = 1
ret x
func b:
int x = 2
int y = 3
ret x + y
}
`)
	fa := unit.Functions["a"]
	fb := unit.Functions["b"]
	require.Len(t, fa.Locals, 1)
	require.Len(t, fb.Locals, 2)
	require.Equal(t, 0, fa.Locals[0].Index)
	require.Equal(t, 0, fb.Locals[0].Index)
	require.Equal(t, 1, fb.Locals[1].Index)
}

func TestDisassembleToString(t *testing.T) {
	unit := compileOne(t, `
classe c {
func soma:
ret arg0 + arg1
}
`)
	out := bytecode.DisassembleToString(unit, unit.Functions["soma"])
	require.True(t, strings.HasPrefix(out, "== c.soma ==\n"))
	require.Contains(t, out, "load_arg")
	require.Contains(t, out, "add")
	require.Contains(t, out, "return")
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	unit := compileOne(t, `
classe c {
comum int total = 0
int passo0
func soma:
ret arg0 + arg1
varfunc nome:
ret "c"
}
`)
	data, err := bytecode.SerializeUnit(unit)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data[:4]), "OBJ\x00"))

	back, err := bytecode.DeserializeUnit(data)
	require.NoError(t, err)

	require.Equal(t, unit.ClassName, back.ClassName)
	require.Equal(t, unit.BaseNames, back.BaseNames)
	require.Equal(t, unit.Strings.All(), back.Strings.All())
	require.Equal(t, len(unit.Variables), len(back.Variables))
	for i, v := range unit.Variables {
		require.Equal(t, v.Name, back.Variables[i].Name)
		require.Equal(t, v.Common, back.Variables[i].Common)
	}
	require.Equal(t, unit.Functions["soma"].Code, back.Functions["soma"].Code)
	require.Equal(t, unit.Functions["nome"].Code, back.Functions["nome"].Code)
}

// The literal-push-pop pass only fires when explicitly enabled, and its
// rewrite never changes the function's byte length or any jump target
// (testable property 4's jump-closure guarantee extends to optimized
// code).
func TestOptimizeFunctionLiteralDiscardGatedByDefault(t *testing.T) {
	unit := compileOne(t, `
classe c {
func f:
1
ret 0
}
`)
	fn := unit.Functions["f"]
	before := append([]byte(nil), fn.Code...)

	changed := bytecode.OptimizeFunction(fn)
	require.False(t, changed)
	require.Equal(t, before, fn.Code)

	changed = bytecode.OptimizeFunction(fn, bytecode.WithOptimizationPass(bytecode.PassLiteralDiscard, true))
	require.True(t, changed)
	require.Equal(t, len(before), len(fn.Code), "optimized code must keep the same byte length")

	for i, b := range fn.Code {
		if bytecode.Op(b) == bytecode.OpNop {
			continue
		}
		require.Equal(t, before[i], b, "non-folded byte %d must be untouched", i)
	}
}
