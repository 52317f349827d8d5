// Compiler lowers the AST (internal/ast) onto the stack bytecode described
// in spec §6.1. One emitter runs per function; each writes to its own
// buffer and shares the enclosing CompiledUnit's string pool (spec §4.3).
package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/magoolation/intmud.net-sub002/internal/ast"
	"github.com/magoolation/intmud.net-sub002/internal/builtins"
)

// typeSizes maps primitive type names to their typed-storage byte width,
// used to lay out a class's variable data segment (spec §3 CompiledUnit:
// "variables ... each with offset and size").
var typeSizes = map[string]int{
	"int1": 1, "int8": 1, "uint8": 1,
	"int16": 2, "uint16": 2,
	"int32": 4, "uint32": 4,
	"real": 8, "real2": 8,
	"ref": 8,
}

func sizeOfType(typeName string, typeSize int) int {
	if n, ok := typeSizes[typeName]; ok {
		return n
	}
	if typeSize > 0 {
		return typeSize
	}
	return 8 // object references, lists, vectors, and handler types: one slot
}

// Compiler compiles one AST ClassDecl into a CompiledUnit.
type Compiler struct {
	unit *CompiledUnit
}

// CompileClass compiles decl into a CompiledUnit. Returns the first fatal
// CompileError encountered, if any; non-fatal issues (there are none in
// this design — every CompileError kind is fatal per unit, spec §4.3.3)
// never accumulate past the first.
func CompileClass(decl *ast.ClassDecl) (*CompiledUnit, error) {
	c := &Compiler{unit: NewCompiledUnit(decl.Name)}
	c.unit.BaseNames = append([]string{}, decl.Bases...)

	seen := make(map[string]bool)
	for _, m := range decl.Members {
		name, err := c.compileMember(m, seen)
		if err != nil {
			return nil, err
		}
		_ = name
	}
	return c.unit, nil
}

func (c *Compiler) compileMember(m ast.Member, seen map[string]bool) (string, error) {
	switch mm := m.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(mm, seen)
	case *ast.FuncDecl:
		return c.compileFuncDecl(mm, seen)
	case *ast.VarFuncDecl:
		return c.compileVarFuncDecl(mm, seen)
	case *ast.ConstDecl:
		return c.compileConstDecl(mm, seen)
	case *ast.VarConstDecl:
		return c.compileVarConstDecl(mm, seen)
	}
	return "", nil
}

func lowerName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

func redefErr(name string, pos ast.Pos) error {
	return &CompileError{Kind: Redefinition, Detail: fmt.Sprintf("%q already declared in this class", name), Line: pos.Line, Column: pos.Column}
}

func (c *Compiler) compileVarDecl(d *ast.VarDecl, seen map[string]bool) (string, error) {
	key := lowerName(d.Name)
	if seen[key] {
		return "", redefErr(d.Name, d.Pos)
	}
	seen[key] = true
	if d.TypeSize < 0 || d.TypeSize > 65535 {
		return "", &CompileError{Kind: TextSizeOutOfRange, Detail: d.TypeName, Line: d.Line, Column: d.Column}
	}
	size := sizeOfType(d.TypeName, d.TypeSize)
	slot := VariableSlot{
		Name: d.Name, TypeName: d.TypeName, TypeSize: d.TypeSize,
		Offset: c.unit.DataSize, Size: size,
		Common: d.Modifiers.Has(ast.ModComum), Saved: d.Modifiers.Has(ast.ModSav),
	}
	if d.Initializer != nil {
		init, err := c.compileFunctionBody("__init_"+d.Name, []ast.Stmt{&ast.ReturnStmt{Pos: d.Pos, Value: d.Initializer}}, false, d.Line)
		if err != nil {
			return "", err
		}
		slot.Initializer = init
	}
	c.unit.Variables = append(c.unit.Variables, slot)
	c.unit.DataSize += size
	return d.Name, nil
}

func (c *Compiler) compileFuncDecl(d *ast.FuncDecl, seen map[string]bool) (string, error) {
	key := lowerName(d.Name)
	if seen[key] {
		return "", redefErr(d.Name, d.Pos)
	}
	seen[key] = true
	fn, err := c.compileFunctionBody(d.Name, d.Body, false, d.Line)
	if err != nil {
		return "", err
	}
	c.unit.Functions[key] = fn
	return d.Name, nil
}

func (c *Compiler) compileVarFuncDecl(d *ast.VarFuncDecl, seen map[string]bool) (string, error) {
	key := lowerName(d.Name)
	if seen[key] {
		return "", redefErr(d.Name, d.Pos)
	}
	seen[key] = true
	fn, err := c.compileFunctionBody(d.Name, d.Body, true, d.Line)
	if err != nil {
		return "", err
	}
	c.unit.Functions[key] = fn
	return d.Name, nil
}

func (c *Compiler) compileConstDecl(d *ast.ConstDecl, seen map[string]bool) (string, error) {
	key := lowerName(d.Name)
	if seen[key] {
		return "", redefErr(d.Name, d.Pos)
	}
	seen[key] = true
	k, i, dv, s, ok := literalOf(d.Value)
	if !ok {
		// Non-literal const bodies are treated the same as varconst: a
		// lazily-evaluated thunk (spec §4.3.3 only guarantees *forward
		// references* never fail at compile time; a non-literal body is
		// just as deferrable).
		return c.compileVarConstDecl(&ast.VarConstDecl{Pos: d.Pos, Name: d.Name, Value: d.Value}, map[string]bool{})
	}
	c.unit.Constants[key] = &Constant{Name: d.Name, Kind: k, I: i, D: dv, S: s}
	return d.Name, nil
}

func literalOf(e ast.Expr) (ConstantKind, int64, float64, string, bool) {
	switch v := e.(type) {
	case *ast.IntLiteral:
		return ConstInt, v.Value, 0, "", true
	case *ast.FloatLiteral:
		return ConstDouble, 0, v.Value, "", true
	case *ast.StringLiteral:
		return ConstString, 0, 0, v.Value, true
	case *ast.NullLiteral:
		return ConstNull, 0, 0, "", true
	}
	return 0, 0, 0, "", false
}

func (c *Compiler) compileVarConstDecl(d *ast.VarConstDecl, seen map[string]bool) (string, error) {
	key := lowerName(d.Name)
	fn, err := c.compileFunctionBody(d.Name, []ast.Stmt{&ast.ReturnStmt{Pos: d.Pos, Value: d.Value}}, false, d.Line)
	if err != nil {
		return "", err
	}
	c.unit.Constants[key] = &Constant{Name: d.Name, Kind: ConstThunk, Thunk: fn}
	return d.Name, nil
}

// emitter lowers one function body to bytecode.
type emitter struct {
	unit      *CompiledUnit
	code      []byte
	lines     []LineEntry
	lastLine  int
	locals    map[string]int
	localDefs []LocalDescriptor
	loops     []*loopCtx
	tmpSeq    int
}

type loopCtx struct {
	breaks    []int
	continues []int
}

func (c *Compiler) compileFunctionBody(name string, body []ast.Stmt, virtual bool, startLine int) (*CompiledFunction, error) {
	e := &emitter{unit: c.unit, locals: make(map[string]int)}
	for _, s := range body {
		if err := e.compileStmt(s); err != nil {
			return nil, err
		}
	}
	e.emit(OpReturn)
	return &CompiledFunction{
		Name: name, Code: e.code, Locals: e.localDefs, Lines: e.lines,
		Virtual: virtual, StartLine: startLine,
	}, nil
}

// --- low level emission helpers ---

func (e *emitter) here() int { return len(e.code) }

func (e *emitter) emit(op Op) { e.code = append(e.code, byte(op)) }

func (e *emitter) emitU8(b byte) { e.code = append(e.code, b) }

func (e *emitter) emitU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	e.code = append(e.code, buf[:]...)
}

func (e *emitter) emitI32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	e.code = append(e.code, buf[:]...)
}

func (e *emitter) emitF64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	e.code = append(e.code, buf[:]...)
}

func (e *emitter) markLine(line int) {
	if line == e.lastLine {
		return
	}
	e.lastLine = line
	e.lines = append(e.lines, LineEntry{Offset: e.here(), Line: line})
}

// emitJump writes a jump opcode with a placeholder 2-byte relative offset
// and returns the position of that placeholder, for a later patch call.
func (e *emitter) emitJump(op Op) int {
	e.emit(op)
	pos := e.here()
	e.emitU16(0)
	return pos
}

// patch writes the relative offset from the jump operand at pos to target,
// using spec §6.1's convention: target = position_after_operand + offset.
func (e *emitter) patch(pos, target int) {
	rel := int16(target - (pos + 2))
	binary.LittleEndian.PutUint16(e.code[pos:pos+2], uint16(rel))
}

func (e *emitter) internString(s string) int { return e.unit.Strings.Intern(s) }

func (e *emitter) pushStringConst(s string) {
	e.emit(OpPushString)
	e.emitU16(uint16(e.internString(s)))
}

func (e *emitter) localIndex(name string) (int, bool) {
	idx, ok := e.locals[lowerName(name)]
	return idx, ok
}

func (e *emitter) declareLocal(name, typeName string) int {
	idx := len(e.localDefs)
	e.locals[lowerName(name)] = idx
	e.localDefs = append(e.localDefs, LocalDescriptor{Name: name, Type: typeName, Index: idx})
	return idx
}

func (e *emitter) newHiddenLocal(prefix string) int {
	e.tmpSeq++
	return e.declareLocal(fmt.Sprintf("__%s%d", prefix, e.tmpSeq), "")
}

func (e *emitter) hasOwnVariable(name string) bool {
	key := lowerName(name)
	for _, v := range e.unit.Variables {
		if lowerName(v.Name) == key {
			return true
		}
	}
	return false
}

func (e *emitter) pushLoopCtx() *loopCtx {
	lc := &loopCtx{}
	e.loops = append(e.loops, lc)
	return lc
}

func (e *emitter) popLoopCtx() *loopCtx {
	lc := e.loops[len(e.loops)-1]
	e.loops = e.loops[:len(e.loops)-1]
	return lc
}

func (e *emitter) currentLoop() *loopCtx {
	if len(e.loops) == 0 {
		return nil
	}
	return e.loops[len(e.loops)-1]
}

// builtinID looks up a built-in function by case-insensitive name.
func builtinID(name string) (int, bool) {
	return builtins.IDByName(name)
}
