// Package ast defines the immutable (post-construction) typed syntax tree
// produced by internal/parser. Every node carries its source position;
// Node is a sealed, discriminated family rooted at the Node interface.
//
// This is the "second AST visitor generation" referenced by the project's
// design notes: it includes DynamicIdentifier and DynamicMemberAccess from
// the start, there is no earlier, incompatible revision to reconcile.
package ast

import "github.com/magoolation/intmud.net-sub002/internal/lexer"

// Pos is embedded by every node to record its source location.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) Position() Pos { return p }

// Node is implemented by every AST node kind.
type Node interface {
	Position() Pos
	node()
}

// posFrom converts a lexer.Position into an ast.Pos.
func posFrom(p lexer.Position) Pos { return Pos{Line: p.Line, Column: p.Column} }

// PosFrom is the exported form used by the parser when it builds nodes.
func PosFrom(p lexer.Position) Pos { return posFrom(p) }

// CompilationUnit is the root of one parsed source file.
type CompilationUnit struct {
	Pos
	FileName string
	Options  []FileOption
	Classes  []*ClassDecl
}

func (*CompilationUnit) node() {}

// FileOption is one "incluir=PATH"-style header directive (spec §6.2).
type FileOption struct {
	Pos
	Name  string
	Value string
}

func (*FileOption) node() {}

// ClassDecl declares one class: its (case-insensitive) name, its ordered
// base-class name list, and its members.
type ClassDecl struct {
	Pos
	Name    string
	Bases   []string
	Members []Member
}

func (*ClassDecl) node() {}

// Member is implemented by every class-body declaration kind:
// *VarDecl, *FuncDecl, *VarFuncDecl, *ConstDecl, *VarConstDecl.
type Member interface {
	Node
	member()
}

// VarModifier flags an instance/variable declaration (spec §3: "modifier
// set (common, saved)").
type VarModifier byte

const (
	ModNone   VarModifier = 0
	ModComum  VarModifier = 1 << iota // shared/static storage
	ModSav                            // persisted across saves
)

func (m VarModifier) Has(f VarModifier) bool { return m&f != 0 }

// VarDecl declares a typed instance, common, or local variable.
type VarDecl struct {
	Pos
	Modifiers   VarModifier
	TypeName    string // e.g. "int32", "txt1", "listaobj"
	TypeSize    int    // N in txt1(N)/txt2(N); 0 when not applicable
	Name        string
	VectorSize  Expr // non-nil when this declares a fixed-size vector
	Initializer Expr // optional
}

func (*VarDecl) node()   {}
func (*VarDecl) member() {}

// FuncDecl declares a method. The parser produces VarFuncDecl (not a
// FuncDecl with Virtual set) for "varfunc", and never sets Virtual.
type FuncDecl struct {
	Pos
	Name    string
	Virtual bool
	Body    []Stmt
}

func (*FuncDecl) node()   {}
func (*FuncDecl) member() {}

// VarFuncDecl declares a virtual "variable-function": Body runs like a
// method body and its value is whatever a `ret` statement returns (null
// when none runs); it is readable without parentheses from the caller's
// side.
type VarFuncDecl struct {
	Pos
	Name string
	Body []Stmt
}

func (*VarFuncDecl) node()   {}
func (*VarFuncDecl) member() {}

// ConstDecl declares a literal-valued constant.
type ConstDecl struct {
	Pos
	Name  string
	Value Expr
}

func (*ConstDecl) node()   {}
func (*ConstDecl) member() {}

// VarConstDecl declares an expression-valued constant (spec §4.3.3: becomes
// a lazily-evaluated bytecode thunk; forward references to other constants
// never fail at compile time).
type VarConstDecl struct {
	Pos
	Name  string
	Value Expr
}

func (*VarConstDecl) node()   {}
func (*VarConstDecl) member() {}
