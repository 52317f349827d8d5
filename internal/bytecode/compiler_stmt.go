package bytecode

import "github.com/magoolation/intmud.net-sub002/internal/ast"

func (e *emitter) compileStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.ExprStmt:
		e.markLine(v.Line)
		for _, ex := range v.Exprs {
			if err := e.compileExpr(ex); err != nil {
				return err
			}
			e.emit(OpPop)
		}
	case *ast.LocalVarStmt:
		e.markLine(v.Line)
		idx := e.declareLocal(v.Name, v.TypeName)
		if v.Initializer != nil {
			if err := e.compileExpr(v.Initializer); err != nil {
				return err
			}
		} else {
			e.emit(OpPushNull)
		}
		e.emit(OpStoreLocal)
		e.emitU16(uint16(idx))
	case *ast.RefVarStmt:
		// refvar aliases another storage location; this implementation
		// snapshots the aliased value into a fresh local rather than
		// tracking a live reference, since value.Value has no l-value
		// slot kind. Re-reads of the ref see the value as of declaration.
		e.markLine(v.Line)
		idx := e.declareLocal(v.Name, "")
		if err := e.compileExpr(v.Target); err != nil {
			return err
		}
		e.emit(OpStoreLocal)
		e.emitU16(uint16(idx))
	case *ast.IfStmt:
		return e.compileIf(v)
	case *ast.WhileStmt:
		return e.compileWhile(v)
	case *ast.ForStmt:
		return e.compileFor(v)
	case *ast.ForeachStmt:
		return e.compileForeach(v)
	case *ast.SwitchStmt:
		return e.compileSwitch(v)
	case *ast.ReturnStmt:
		return e.compileReturn(v)
	case *ast.ExitStmt:
		return e.compileExit(v)
	case *ast.ContinueStmt:
		return e.compileContinue(v)
	case *ast.TerminateStmt:
		e.emit(OpTerminate)
	}
	return nil
}

func (e *emitter) compileStmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := e.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) compileIf(v *ast.IfStmt) error {
	e.markLine(v.Line)
	if err := e.compileExpr(v.Cond); err != nil {
		return err
	}
	elseJump := e.emitJump(OpJumpIfFalse)
	if err := e.compileStmts(v.Then); err != nil {
		return err
	}
	if len(v.Else) > 0 {
		endJump := e.emitJump(OpJump)
		e.patch(elseJump, e.here())
		if err := e.compileStmts(v.Else); err != nil {
			return err
		}
		e.patch(endJump, e.here())
		return nil
	}
	e.patch(elseJump, e.here())
	return nil
}

func (e *emitter) compileWhile(v *ast.WhileStmt) error {
	e.markLine(v.Line)
	lc := e.pushLoopCtx()
	condStart := e.here()
	if err := e.compileExpr(v.Cond); err != nil {
		return err
	}
	exitJump := e.emitJump(OpJumpIfFalse)
	if err := e.compileStmts(v.Body); err != nil {
		return err
	}
	back := e.emitJump(OpJump)
	e.patch(back, condStart)
	end := e.here()
	e.patch(exitJump, end)
	e.popLoopCtx()
	for _, p := range lc.breaks {
		e.patch(p, end)
	}
	for _, p := range lc.continues {
		e.patch(p, condStart)
	}
	return nil
}

func (e *emitter) compileFor(v *ast.ForStmt) error {
	e.markLine(v.Line)
	if v.Init != nil {
		if err := e.compileStmt(v.Init); err != nil {
			return err
		}
	}
	lc := e.pushLoopCtx()
	condStart := e.here()
	exitJump := -1
	if v.Cond != nil {
		if err := e.compileExpr(v.Cond); err != nil {
			return err
		}
		exitJump = e.emitJump(OpJumpIfFalse)
	}
	if err := e.compileStmts(v.Body); err != nil {
		return err
	}
	incrStart := e.here()
	if v.Incr != nil {
		if err := e.compileStmt(v.Incr); err != nil {
			return err
		}
	}
	back := e.emitJump(OpJump)
	e.patch(back, condStart)
	end := e.here()
	if exitJump >= 0 {
		e.patch(exitJump, end)
	}
	e.popLoopCtx()
	for _, p := range lc.breaks {
		e.patch(p, end)
	}
	for _, p := range lc.continues {
		e.patch(p, incrStart)
	}
	return nil
}

// compileForeach implements spec §4.3.2's literal expansion: hidden locals
// __col/__idx, a tam()-driven bound check, indexed load into the loop
// variable, then the body. Per the spec text, continue's target for
// while/foreach loops is "the condition test" — for foreach that is the
// bound check itself, which runs *before* the index increment; a continue
// therefore re-tests the same index rather than advancing past it, exactly
// as the expansion describes.
func (e *emitter) compileForeach(v *ast.ForeachStmt) error {
	e.markLine(v.Line)
	colIdx := e.newHiddenLocal("col")
	idxIdx := e.newHiddenLocal("idx")
	if err := e.compileExpr(v.Collection); err != nil {
		return err
	}
	e.emit(OpStoreLocal)
	e.emitU16(uint16(colIdx))
	e.emit(OpPushInt)
	e.emitI32(0)
	e.emit(OpStoreLocal)
	e.emitU16(uint16(idxIdx))

	lc := e.pushLoopCtx()
	condStart := e.here()
	e.emit(OpLoadLocal)
	e.emitU16(uint16(idxIdx))
	e.emit(OpLoadLocal)
	e.emitU16(uint16(colIdx))
	if id, ok := builtinID("tam"); ok {
		e.emit(OpCallBuiltin)
		e.emitU16(uint16(id))
		e.emitU8(1)
	}
	e.emit(OpLt)
	exitJump := e.emitJump(OpJumpIfFalse)

	loopVar := e.declareLocal(v.VarName, "")
	e.emit(OpLoadLocal)
	e.emitU16(uint16(colIdx))
	e.emit(OpLoadLocal)
	e.emitU16(uint16(idxIdx))
	e.emit(OpLoadIndex)
	e.emit(OpStoreLocal)
	e.emitU16(uint16(loopVar))

	if err := e.compileStmts(v.Body); err != nil {
		return err
	}

	e.emit(OpLoadLocal)
	e.emitU16(uint16(idxIdx))
	e.emit(OpPushInt)
	e.emitI32(1)
	e.emit(OpAdd)
	e.emit(OpStoreLocal)
	e.emitU16(uint16(idxIdx))

	back := e.emitJump(OpJump)
	e.patch(back, condStart)
	end := e.here()
	e.patch(exitJump, end)
	e.popLoopCtx()
	for _, p := range lc.breaks {
		e.patch(p, end)
	}
	for _, p := range lc.continues {
		e.patch(p, condStart)
	}
	return nil
}

// compileSwitch implements spec §4.3.2's casovar lowering: the discriminant
// stays on the stack while each labeled arm is tested with
// Dup;PushString;Eq;JumpIfTrue, and a single Pop at the very end discards
// it regardless of which arm (or the default) ran.
func (e *emitter) compileSwitch(v *ast.SwitchStmt) error {
	e.markLine(v.Line)
	if err := e.compileExpr(v.Value); err != nil {
		return err
	}
	armJumps := make([]int, len(v.Cases))
	for i, c := range v.Cases {
		e.emit(OpDup)
		e.pushStringConst(c.Label)
		e.emit(OpEq)
		armJumps[i] = e.emitJump(OpJumpIfTrue)
	}
	defaultJump := e.emitJump(OpJump)

	var endJumps []int
	for i, c := range v.Cases {
		e.patch(armJumps[i], e.here())
		if err := e.compileStmts(c.Body); err != nil {
			return err
		}
		endJumps = append(endJumps, e.emitJump(OpJump))
	}
	e.patch(defaultJump, e.here())
	if v.HasDef {
		if err := e.compileStmts(v.Default); err != nil {
			return err
		}
	}
	end := e.here()
	for _, p := range endJumps {
		e.patch(p, end)
	}
	e.emit(OpPop)
	return nil
}

func (e *emitter) compileReturn(v *ast.ReturnStmt) error {
	e.markLine(v.Line)
	if v.Cond != nil {
		if err := e.compileExpr(v.Cond); err != nil {
			return err
		}
		skip := e.emitJump(OpJumpIfFalse)
		if err := e.emitReturnValue(v.Value); err != nil {
			return err
		}
		e.patch(skip, e.here())
		return nil
	}
	return e.emitReturnValue(v.Value)
}

func (e *emitter) emitReturnValue(val ast.Expr) error {
	if val == nil {
		e.emit(OpReturn)
		return nil
	}
	if err := e.compileExpr(val); err != nil {
		return err
	}
	e.emit(OpReturnValue)
	return nil
}

func (e *emitter) compileExit(v *ast.ExitStmt) error {
	e.markLine(v.Line)
	lc := e.currentLoop()
	if v.Cond != nil {
		if err := e.compileExpr(v.Cond); err != nil {
			return err
		}
		skip := e.emitJump(OpJumpIfFalse)
		pos := e.emitJump(OpJump)
		if lc != nil {
			lc.breaks = append(lc.breaks, pos)
		}
		e.patch(skip, e.here())
		return nil
	}
	pos := e.emitJump(OpJump)
	if lc != nil {
		lc.breaks = append(lc.breaks, pos)
	}
	return nil
}

func (e *emitter) compileContinue(v *ast.ContinueStmt) error {
	e.markLine(v.Line)
	lc := e.currentLoop()
	if v.Cond != nil {
		if err := e.compileExpr(v.Cond); err != nil {
			return err
		}
		skip := e.emitJump(OpJumpIfFalse)
		pos := e.emitJump(OpJump)
		if lc != nil {
			lc.continues = append(lc.continues, pos)
		}
		e.patch(skip, e.here())
		return nil
	}
	pos := e.emitJump(OpJump)
	if lc != nil {
		lc.continues = append(lc.continues, pos)
	}
	return nil
}
