package classmodel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/parser"
)

// buildLoader compiles every class in src and returns a resolved Loader.
func buildLoader(t *testing.T, src string) *classmodel.Loader {
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
	return loader
}

// Method dispatch walks most-derived-first: a grandchild class that does
// not override a method still reaches the middle class's override before
// the root's (testable property 6).
func TestDispatchOrderMostDerivedFirst(t *testing.T) {
	loader := buildLoader(t, `
classe raiz {
varfunc nome:
ret "raiz"
}
classe meio herda raiz {
varfunc nome:
ret "meio"
}
classe folha herda meio {
}
`)
	raiz, _ := loader.Lookup("raiz")
	meio, _ := loader.Lookup("meio")
	folha, _ := loader.Lookup("folha")

	fn, owner := folha.FindFunction("nome")
	require.NotNil(t, fn)
	require.Same(t, meio, owner)

	fn, owner = meio.FindFunction("nome")
	require.NotNil(t, fn)
	require.Same(t, meio, owner)

	fn, owner = raiz.FindFunction("nome")
	require.NotNil(t, fn)
	require.Same(t, raiz, owner)
}

// An unresolved base class is a fatal link error.
func TestResolveUnresolvedBase(t *testing.T) {
	p := parser.New(`
classe c herda fantasma {
}
`, "t.script")
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	loader := classmodel.NewLoader()
	unit, err := bytecode.CompileClass(file.Classes[0])
	require.NoError(t, err)
	loader.AddUnit(unit)

	err = loader.Resolve()
	require.Error(t, err)
	var linkErr *bytecode.LinkError
	require.ErrorAs(t, err, &linkErr)
}

// A cycle through a class's own descendants is rejected at link time
// (diamonds through distinct bases remain fine).
func TestResolveCyclicInheritanceRejected(t *testing.T) {
	p := parser.New(`
classe a herda b {
}
classe b herda a {
}
`, "t.script")
	file := p.ParseFile()
	require.Empty(t, p.Errors())

	loader := classmodel.NewLoader()
	for _, decl := range file.Classes {
		unit, err := bytecode.CompileClass(decl)
		require.NoError(t, err)
		loader.AddUnit(unit)
	}

	err := loader.Resolve()
	require.Error(t, err)
	var linkErr *bytecode.LinkError
	require.ErrorAs(t, err, &linkErr)
}

// A diamond — two distinct base classes sharing a common ancestor — links
// cleanly and resolves the shared ancestor's member through either path.
func TestResolveDiamondInheritance(t *testing.T) {
	loader := buildLoader(t, `
classe raiz {
const valor = 1
}
classe esquerda herda raiz {
}
classe direita herda raiz {
}
classe folha herda esquerda, direita {
}
`)
	folha, _ := loader.Lookup("folha")
	c, owner := folha.FindConstant("valor")
	require.NotNil(t, c)
	require.Equal(t, "raiz", owner.Name())
}

// FindVariable stops at the first class (most-derived first) declaring
// the name at all, regardless of whether that declaration is `comum` or
// plain instance storage — it does not hunt further down the chain for a
// differently-qualified declaration of the same name (spec open
// question 3).
func TestFindVariableDoesNotPreferInstanceOverCommonDownChain(t *testing.T) {
	loader := buildLoader(t, `
classe base {
comum int contador
}
classe derivada herda base {
}
`)
	derivada, _ := loader.Lookup("derivada")
	slot, owner, ok := derivada.FindVariable("contador")
	require.True(t, ok)
	require.True(t, slot.Common)
	require.Equal(t, "base", owner.Name())

	cell, ok := derivada.CommonSlot("contador")
	require.True(t, ok)
	require.NotNil(t, cell)
}

// IsInstanceOf walks the full ancestor chain, not just the direct base.
func TestIsInstanceOf(t *testing.T) {
	loader := buildLoader(t, `
classe raiz {
}
classe meio herda raiz {
}
classe folha herda meio {
}
`)
	folha, _ := loader.Lookup("folha")
	require.True(t, folha.IsInstanceOf("folha"))
	require.True(t, folha.IsInstanceOf("meio"))
	require.True(t, folha.IsInstanceOf("raiz"))
	require.False(t, folha.IsInstanceOf("outra"))
}

// RuntimeObject deletion is idempotent and deleted objects still appear
// in the class's append-only registry (testable property 10).
func TestDeleteIdempotentAndRegistryOrder(t *testing.T) {
	loader := buildLoader(t, `
classe c {
}
`)
	class, _ := loader.Lookup("c")
	a := classmodel.NewRuntimeObject(class)
	class.Register(a)
	b := classmodel.NewRuntimeObject(class)
	class.Register(b)

	a.Delete()
	a.Delete()
	require.True(t, a.IsDeleted())

	require.Len(t, class.Objects, 2)
	require.Same(t, a, class.Objects[0])
	require.Same(t, b, class.Objects[1])

	first := class.First()
	require.Same(t, b, first)
}
