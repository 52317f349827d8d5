package bytecode

import (
	"fmt"

	"github.com/magoolation/intmud.net-sub002/internal/ast"
)

var binOpMap = map[ast.BinOp]Op{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul, ast.OpDiv: OpDiv, ast.OpMod: OpMod,
	ast.OpBitAnd: OpBitAnd, ast.OpBitOr: OpBitOr, ast.OpBitXor: OpBitXor,
	ast.OpShl: OpShl, ast.OpShr: OpShr,
	ast.OpEq: OpEq, ast.OpStrictEq: OpStrictEq, ast.OpNe: OpNe, ast.OpStrictNe: OpStrictNe,
	ast.OpLt: OpLt, ast.OpLe: OpLe, ast.OpGt: OpGt, ast.OpGe: OpGe,
}

// compileExpr lowers e, leaving exactly one value on the stack.
func (e *emitter) compileExpr(ex ast.Expr) error {
	switch v := ex.(type) {
	case *ast.IntLiteral:
		e.emit(OpPushInt)
		e.emitI32(int32(v.Value))
	case *ast.FloatLiteral:
		e.emit(OpPushDouble)
		e.emitF64(v.Value)
	case *ast.StringLiteral:
		e.pushStringConst(v.Value)
	case *ast.NullLiteral:
		e.emit(OpPushNull)
	case *ast.ThisExpr:
		e.emit(OpLoadThis)
	case *ast.ArgsCountRef:
		e.emit(OpLoadArgCount)
	case *ast.ArgRef:
		e.emit(OpLoadArg)
		e.emitU8(byte(v.Index))
	case *ast.Ident:
		return e.compileIdentLoad(v)
	case *ast.BinaryExpr:
		return e.compileBinary(v)
	case *ast.UnaryExpr:
		return e.compileUnary(v)
	case *ast.PostfixExpr:
		return e.compilePostfix(v)
	case *ast.ConditionalExpr:
		return e.compileConditional(v)
	case *ast.CoalesceExpr:
		return e.compileCoalesce(v)
	case *ast.AssignExpr:
		return e.compileAssign(v)
	case *ast.MemberAccess:
		return e.compileMemberLoad(v)
	case *ast.DynamicMemberAccess:
		return e.compileDynamicMemberLoad(v)
	case *ast.IndexExpr:
		if err := e.compileExpr(v.Collection); err != nil {
			return err
		}
		if err := e.compileExpr(v.Index); err != nil {
			return err
		}
		e.emit(OpLoadIndex)
	case *ast.CallExpr:
		return e.compileCall(v)
	case *ast.DynamicIdentifier:
		if err := e.compileDynamicName(v.NameParts, v.Countdown); err != nil {
			return err
		}
		e.emit(OpLoadDynamic)
	case *ast.DollarRef:
		return e.compileDollarRef(v)
	case *ast.ClassRef:
		return e.compileClassRefLoad(v)
	case *ast.NewExpr:
		return e.compileNew(v)
	case *ast.DeleteExpr:
		if err := e.compileExpr(v.Target); err != nil {
			return err
		}
		e.emit(OpDelete)
		e.emit(OpPushNull)
	default:
		return fmt.Errorf("bytecode: unhandled expression %T", ex)
	}
	return nil
}

func (e *emitter) compileIdentLoad(v *ast.Ident) error {
	if idx, ok := e.localIndex(v.Name); ok {
		e.emit(OpLoadLocal)
		e.emitU16(uint16(idx))
		return nil
	}
	if e.hasOwnVariable(v.Name) {
		e.emit(OpLoadThis)
		e.emit(OpLoadField)
		e.emitU16(uint16(e.internString(v.Name)))
		return nil
	}
	// Unresolved at compile time: deferred to the runtime's dynamic lookup
	// order (local -> receiver field or common along the ancestor chain ->
	// varfunc -> same-class constant -> other classes' commons and
	// constants), spec §4.3.1/§4.4.
	e.emit(OpLoadGlobal)
	e.emitU16(uint16(e.internString(v.Name)))
	return nil
}

func (e *emitter) compileBinary(v *ast.BinaryExpr) error {
	if v.Op == ast.OpAnd {
		return e.compileShortCircuit(v.Left, v.Right, false)
	}
	if v.Op == ast.OpOr {
		return e.compileShortCircuit(v.Left, v.Right, true)
	}
	if err := e.compileExpr(v.Left); err != nil {
		return err
	}
	if err := e.compileExpr(v.Right); err != nil {
		return err
	}
	op, ok := binOpMap[v.Op]
	if !ok {
		return &CompileError{Kind: UnknownOperator, Line: v.Line, Column: v.Column}
	}
	e.emit(op)
	return nil
}

// compileShortCircuit lowers && and ||: Left; Dup; JumpIf(skip evaluating
// Right) -> skip; Pop; Right; skip:
func (e *emitter) compileShortCircuit(left, right ast.Expr, isOr bool) error {
	if err := e.compileExpr(left); err != nil {
		return err
	}
	e.emit(OpDup)
	var skip int
	if isOr {
		skip = e.emitJump(OpJumpIfTrue)
	} else {
		skip = e.emitJump(OpJumpIfFalse)
	}
	e.emit(OpPop)
	if err := e.compileExpr(right); err != nil {
		return err
	}
	e.patch(skip, e.here())
	return nil
}

func (e *emitter) compileUnary(v *ast.UnaryExpr) error {
	switch v.Op {
	case ast.OpNeg:
		if err := e.compileExpr(v.Operand); err != nil {
			return err
		}
		e.emit(OpNeg)
	case ast.OpNot:
		if err := e.compileExpr(v.Operand); err != nil {
			return err
		}
		e.emit(OpNot)
	case ast.OpBitNot:
		if err := e.compileExpr(v.Operand); err != nil {
			return err
		}
		e.emit(OpBitNot)
	case ast.OpPreInc, ast.OpPreDec:
		return e.compileIncDec(v.Operand, v.Op == ast.OpPreInc, true)
	}
	return nil
}

func (e *emitter) compilePostfix(v *ast.PostfixExpr) error {
	return e.compileIncDec(v.Operand, v.Op == ast.OpPostInc, false)
}

// compileIncDec implements spec §4.3.2: "prefix forms compute new value,
// duplicate, then store; postfix forms load, duplicate, then increment and
// store the non-duplicated copy". Member/index/dynamic targets are routed
// through hidden local temporaries instead of a stack rotation — the stack
// instruction set (Dup/Swap/Pop) has no 3-deep rotate, and spec's own design
// notes flag this exact gap for the analogous dynamic-class-member case, so
// a deterministic, documented convention is the intended resolution (see
// DESIGN.md).
func (e *emitter) compileIncDec(target ast.Expr, isInc, prefix bool) error {
	delta := int32(1)
	if !isInc {
		delta = -1
	}
	if id, ok := target.(*ast.Ident); ok {
		if idx, isLocal := e.localIndex(id.Name); isLocal {
			if prefix {
				e.emit(OpLoadLocal)
				e.emitU16(uint16(idx))
				e.emit(OpPushInt)
				e.emitI32(delta)
				e.emit(OpAdd)
				e.emit(OpDup)
				e.emit(OpStoreLocal)
				e.emitU16(uint16(idx))
			} else {
				e.emit(OpLoadLocal)
				e.emitU16(uint16(idx))
				e.emit(OpDup)
				e.emit(OpPushInt)
				e.emitI32(delta)
				e.emit(OpAdd)
				e.emit(OpStoreLocal)
				e.emitU16(uint16(idx))
			}
			return nil
		}
	}
	if prefix {
		tmp := e.newHiddenLocal("inc")
		if err := e.compileExpr(target); err != nil {
			return err
		}
		e.emit(OpPushInt)
		e.emitI32(delta)
		e.emit(OpAdd)
		e.emit(OpStoreLocal)
		e.emitU16(uint16(tmp))
		if err := e.compileStoreTarget(target, func() error {
			e.emit(OpLoadLocal)
			e.emitU16(uint16(tmp))
			return nil
		}); err != nil {
			return err
		}
		e.emit(OpLoadLocal)
		e.emitU16(uint16(tmp))
		return nil
	}
	tmpOld := e.newHiddenLocal("old")
	tmpNew := e.newHiddenLocal("new")
	if err := e.compileExpr(target); err != nil {
		return err
	}
	e.emit(OpStoreLocal)
	e.emitU16(uint16(tmpOld))
	e.emit(OpLoadLocal)
	e.emitU16(uint16(tmpOld))
	e.emit(OpPushInt)
	e.emitI32(delta)
	e.emit(OpAdd)
	e.emit(OpStoreLocal)
	e.emitU16(uint16(tmpNew))
	if err := e.compileStoreTarget(target, func() error {
		e.emit(OpLoadLocal)
		e.emitU16(uint16(tmpNew))
		return nil
	}); err != nil {
		return err
	}
	e.emit(OpLoadLocal)
	e.emitU16(uint16(tmpOld))
	return nil
}

func (e *emitter) compileConditional(v *ast.ConditionalExpr) error {
	if err := e.compileExpr(v.Cond); err != nil {
		return err
	}
	elseJump := e.emitJump(OpJumpIfFalse)
	if err := e.compileExpr(v.Then); err != nil {
		return err
	}
	endJump := e.emitJump(OpJump)
	e.patch(elseJump, e.here())
	if err := e.compileExpr(v.Else); err != nil {
		return err
	}
	e.patch(endJump, e.here())
	return nil
}

// compileCoalesce lowers `left ?? right`: Left; Dup; JumpIfNotNull(end);
// Pop; Right; end:
func (e *emitter) compileCoalesce(v *ast.CoalesceExpr) error {
	if err := e.compileExpr(v.Left); err != nil {
		return err
	}
	e.emit(OpDup)
	end := e.emitJump(OpJumpIfNotNull)
	e.emit(OpPop)
	if err := e.compileExpr(v.Right); err != nil {
		return err
	}
	e.patch(end, e.here())
	return nil
}

var compoundBinOp = map[ast.AssignOp]Op{
	ast.AssignAdd: OpAdd, ast.AssignSub: OpSub, ast.AssignMul: OpMul, ast.AssignDiv: OpDiv,
	ast.AssignMod: OpMod, ast.AssignAnd: OpBitAnd, ast.AssignOr: OpBitOr, ast.AssignXor: OpBitXor,
	ast.AssignShl: OpShl, ast.AssignShr: OpShr,
}

func (e *emitter) compileAssign(v *ast.AssignExpr) error {
	if v.Op == ast.AssignPlain {
		if err := e.compileStoreTarget(v.Target, func() error { return e.compileExpr(v.Value) }); err != nil {
			return err
		}
		return e.compileLoadTarget(v.Target)
	}
	op := compoundBinOp[v.Op]
	if err := e.compileStoreTarget(v.Target, func() error {
		if err := e.compileLoadTarget(v.Target); err != nil {
			return err
		}
		if err := e.compileExpr(v.Value); err != nil {
			return err
		}
		e.emit(op)
		return nil
	}); err != nil {
		return err
	}
	return e.compileLoadTarget(v.Target)
}

// compileLoadTarget reads the current value of an assignable expression.
func (e *emitter) compileLoadTarget(target ast.Expr) error {
	return e.compileExpr(target)
}

// compileStoreTarget stores the value produced by valueFn into target,
// evaluating target's object/index/name sub-expressions first so the
// operand order matches compileLoadTarget's convention: receiver (and
// index/name) pushed before the value (spec §9 Open Questions: StoreIndex
// stack order — this repo fixes [collection, index, value], and extends
// the same convention to StoreField/StoreFieldDynamic/StoreDynamic).
func (e *emitter) compileStoreTarget(target ast.Expr, valueFn func() error) error {
	switch t := target.(type) {
	case *ast.Ident:
		if idx, ok := e.localIndex(t.Name); ok {
			if err := valueFn(); err != nil {
				return err
			}
			e.emit(OpStoreLocal)
			e.emitU16(uint16(idx))
			return nil
		}
		if e.hasOwnVariable(t.Name) {
			e.emit(OpLoadThis)
			if err := valueFn(); err != nil {
				return err
			}
			e.emit(OpStoreField)
			e.emitU16(uint16(e.internString(t.Name)))
			return nil
		}
		if err := valueFn(); err != nil {
			return err
		}
		e.emit(OpStoreGlobal)
		e.emitU16(uint16(e.internString(t.Name)))
		return nil
	case *ast.MemberAccess:
		if err := e.compileExpr(t.Object); err != nil {
			return err
		}
		if err := valueFn(); err != nil {
			return err
		}
		e.emit(OpStoreField)
		e.emitU16(uint16(e.internString(t.Name)))
		return nil
	case *ast.DynamicMemberAccess:
		if err := e.compileExpr(t.Object); err != nil {
			return err
		}
		if err := e.compileDynamicName(t.NameParts, t.Countdown); err != nil {
			return err
		}
		if err := valueFn(); err != nil {
			return err
		}
		e.emit(OpStoreFieldDynamic)
		return nil
	case *ast.DynamicIdentifier:
		if err := e.compileDynamicName(t.NameParts, t.Countdown); err != nil {
			return err
		}
		if err := valueFn(); err != nil {
			return err
		}
		e.emit(OpStoreDynamic)
		return nil
	case *ast.IndexExpr:
		if err := e.compileExpr(t.Collection); err != nil {
			return err
		}
		if err := e.compileExpr(t.Index); err != nil {
			return err
		}
		if err := valueFn(); err != nil {
			return err
		}
		e.emit(OpStoreIndex)
		return nil
	}
	return &CompileError{Kind: InvalidAssignmentTarget, Line: target.Position().Line, Column: target.Position().Column}
}

func (e *emitter) compileMemberLoad(v *ast.MemberAccess) error {
	if err := e.compileExpr(v.Object); err != nil {
		return err
	}
	e.emit(OpLoadField)
	e.emitU16(uint16(e.internString(v.Name)))
	return nil
}

func (e *emitter) compileDynamicMemberLoad(v *ast.DynamicMemberAccess) error {
	if err := e.compileExpr(v.Object); err != nil {
		return err
	}
	if err := e.compileDynamicName(v.NameParts, v.Countdown); err != nil {
		return err
	}
	e.emit(OpLoadFieldDynamic)
	return nil
}

// compileDynamicName builds a synthesized identifier on the stack out of
// literal fragments and evaluated expressions (spec §4.2 "Dynamic names"),
// using OpConcat to fold each fragment's stringified value onto a running
// result: pushing every part left to right, then applying OpConcat once
// per gap, pops and recombines the two most recently produced values each
// time, which folds out to the full left-to-right concatenation. A
// trailing '@' countdown suffix (spec §3) decrements the synthesized
// name's numeric tail by one; there is no dedicated opcode for that, so it
// is applied as a call to the "decrementatxt" built-in over the finished
// string instead of growing the wire format.
func (e *emitter) compileDynamicName(parts []ast.NamePart, countdown bool) error {
	if len(parts) == 0 {
		e.pushStringConst("")
	} else {
		for _, p := range parts {
			if p.Expr != nil {
				if err := e.compileExpr(p.Expr); err != nil {
					return err
				}
			} else {
				e.pushStringConst(p.Literal)
			}
		}
		for range parts[1:] {
			e.emit(OpConcat)
		}
	}
	if countdown {
		id, ok := builtinID("decrementatxt")
		if ok {
			e.emit(OpCallBuiltin)
			e.emitU16(uint16(id))
			e.emitU8(1)
		}
	}
	return nil
}

func (e *emitter) compileArgs(args []ast.Expr) error {
	for _, a := range args {
		if err := e.compileExpr(a); err != nil {
			return err
		}
	}
	return nil
}

// compileCall picks CallMethod/CallMethodDynamic/CallBuiltin/CallDynamic
// based on the callee's shape (spec §6.1's call family); a bare name that
// is not a built-in becomes LoadThis + CallMethod, so OpCall is not emitted.
func (e *emitter) compileCall(v *ast.CallExpr) error {
	switch callee := v.Callee.(type) {
	case *ast.Ident:
		if id, ok := builtinID(callee.Name); ok {
			if err := e.compileArgs(v.Args); err != nil {
				return err
			}
			e.emit(OpCallBuiltin)
			e.emitU16(uint16(id))
			e.emitU8(byte(len(v.Args)))
			return nil
		}
		// Implicit-receiver method call: `metodo(args)` == `este.metodo(args)`.
		e.emit(OpLoadThis)
		if err := e.compileArgs(v.Args); err != nil {
			return err
		}
		e.emit(OpCallMethod)
		e.emitU16(uint16(e.internString(callee.Name)))
		e.emitU8(byte(len(v.Args)))
		return nil
	case *ast.MemberAccess:
		if err := e.compileExpr(callee.Object); err != nil {
			return err
		}
		if err := e.compileArgs(v.Args); err != nil {
			return err
		}
		e.emit(OpCallMethod)
		e.emitU16(uint16(e.internString(callee.Name)))
		e.emitU8(byte(len(v.Args)))
		return nil
	case *ast.DynamicMemberAccess:
		if err := e.compileExpr(callee.Object); err != nil {
			return err
		}
		if err := e.compileArgs(v.Args); err != nil {
			return err
		}
		if err := e.compileDynamicName(callee.NameParts, callee.Countdown); err != nil {
			return err
		}
		e.emit(OpCallMethodDynamic)
		e.emitU8(byte(len(v.Args)))
		return nil
	case *ast.DynamicIdentifier:
		e.emit(OpLoadThis)
		if err := e.compileArgs(v.Args); err != nil {
			return err
		}
		if err := e.compileDynamicName(callee.NameParts, callee.Countdown); err != nil {
			return err
		}
		e.emit(OpCallMethodDynamic)
		e.emitU8(byte(len(v.Args)))
		return nil
	default:
		// A computed callable value (e.g. a $class reference) sits on the
		// stack already; CallDynamic dispatches through it directly.
		if err := e.compileExpr(v.Callee); err != nil {
			return err
		}
		if err := e.compileArgs(v.Args); err != nil {
			return err
		}
		e.emit(OpCallDynamic)
		e.emitU8(byte(len(v.Args)))
		return nil
	}
}

// compileDollarRef lowers `$Classe` / `$[expr]` to a LoadClass reference to
// the class's first (or dynamically chosen) live instance.
func (e *emitter) compileDollarRef(v *ast.DollarRef) error {
	if v.Dynamic != nil {
		if err := e.compileExpr(v.Dynamic); err != nil {
			return err
		}
		e.emit(OpLoadDynamic)
		return nil
	}
	e.emit(OpLoadClass)
	e.emitU16(uint16(e.internString(v.ClassName)))
	return nil
}

// compileClassRefLoad lowers `Classe:membro`, reading a common/static
// member off a class rather than an instance.
func (e *emitter) compileClassRefLoad(v *ast.ClassRef) error {
	if v.ClassNameParts != nil || v.MemberNameParts != nil {
		if v.ClassNameParts != nil {
			if err := e.compileDynamicName(v.ClassNameParts, false); err != nil {
				return err
			}
		} else {
			e.pushStringConst(v.ClassName)
		}
		if v.MemberNameParts != nil {
			if err := e.compileDynamicName(v.MemberNameParts, false); err != nil {
				return err
			}
		} else {
			e.pushStringConst(v.MemberName)
		}
		e.emit(OpLoadFieldDynamic)
		return nil
	}
	e.emit(OpLoadClassMember)
	e.emitU16(uint16(e.internString(v.ClassName)))
	e.emitU16(uint16(e.internString(v.MemberName)))
	return nil
}

func (e *emitter) compileNew(v *ast.NewExpr) error {
	if err := e.compileArgs(v.Args); err != nil {
		return err
	}
	e.emit(OpNew)
	e.emitU16(uint16(e.internString(v.ClassName)))
	e.emitU8(byte(len(v.Args)))
	return nil
}
