package parser

import (
	"github.com/magoolation/intmud.net-sub002/internal/ast"
	"github.com/magoolation/intmud.net-sub002/internal/lexer"
)

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curKind() {
	case lexer.KwSe:
		return p.parseIf()
	case lexer.KwEnquanto:
		return p.parseWhile()
	case lexer.KwPara:
		return p.parseForOrForeach()
	case lexer.KwCasovar:
		return p.parseSwitch()
	case lexer.KwRet:
		return p.parseReturn()
	case lexer.KwSair:
		return p.parseExit()
	case lexer.KwContinuar:
		return p.parseContinue()
	case lexer.KwTerminar:
		t := p.advance()
		return &ast.TerminateStmt{Pos: p.astPos(t)}
	case lexer.KwRefvar:
		return p.parseRefVar()
	default:
		if p.atLocalVarStart() {
			return p.parseLocalVar()
		}
		return p.parseExprStmt()
	}
}

// atLocalVarStart heuristically detects `type name [= init]` local
// declarations: an identifier (the type) followed by another identifier.
// A contextual keyword in the type position is not recognised here.
func (p *Parser) atLocalVarStart() bool {
	t := p.cur()
	if t.Kind != lexer.Ident {
		return false
	}
	n := p.peekAt(1)
	return n.Kind == lexer.Ident
}

func (p *Parser) parseLocalVar() ast.Stmt {
	start := p.cur()
	typeName := p.asIdentName()
	name := p.asIdentName()
	stmt := &ast.LocalVarStmt{Pos: p.astPos(start), TypeName: typeName, Name: name}
	if p.curKind() == lexer.Assign {
		p.advance()
		stmt.Initializer = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseRefVar() ast.Stmt {
	start := p.advance()
	name := p.asIdentName()
	p.expect(lexer.Assign, "'='")
	target := p.parseExpr()
	return &ast.RefVarStmt{Pos: p.astPos(start), Name: name, Target: target}
}

func (p *Parser) parseIf() ast.Stmt {
	start := p.advance() // 'se'
	cond := p.parseExpr()
	then := p.parseStmtsUntil(lexer.KwSenao, lexer.KwFimse)
	stmt := &ast.IfStmt{Pos: p.astPos(start), Cond: cond, Then: then}
	if p.curKind() == lexer.KwSenao {
		p.advance()
		if p.curKind() == lexer.KwSe {
			stmt.Else = []ast.Stmt{p.parseIf()}
			return stmt
		}
		stmt.Else = p.parseStmtsUntil(lexer.KwFimse)
	}
	p.expect(lexer.KwFimse, "'fimse'")
	return stmt
}

func (p *Parser) parseWhile() ast.Stmt {
	start := p.advance() // 'enquanto'
	cond := p.parseExpr()
	body := p.parseStmtsUntil(lexer.KwEfim)
	p.expect(lexer.KwEfim, "'efim'")
	return &ast.WhileStmt{Pos: p.astPos(start), Cond: cond, Body: body}
}

func (p *Parser) parseForOrForeach() ast.Stmt {
	start := p.advance() // 'para'
	if p.curKind() == lexer.KwCada {
		p.advance()
		varName := p.asIdentName()
		p.expect(lexer.KwEm, "'em'")
		coll := p.parseExpr()
		body := p.parseStmtsUntil(lexer.KwEpara)
		p.expect(lexer.KwEpara, "'epara'")
		return &ast.ForeachStmt{Pos: p.astPos(start), VarName: varName, Collection: coll, Body: body}
	}
	var init ast.Stmt
	if p.curKind() != lexer.Semi {
		init = p.parseStmt()
	}
	p.expect(lexer.Semi, "';'")
	var cond ast.Expr
	if p.curKind() != lexer.Semi {
		cond = p.parseExpr()
	}
	p.expect(lexer.Semi, "';'")
	var incr ast.Stmt
	if p.curKind() != lexer.LBrace && !p.isBodyEnd(lexer.KwEpara) {
		incr = p.parseStmt()
	}
	body := p.parseStmtsUntil(lexer.KwEpara)
	p.expect(lexer.KwEpara, "'epara'")
	return &ast.ForStmt{Pos: p.astPos(start), Init: init, Cond: cond, Incr: incr, Body: body}
}

func (p *Parser) parseSwitch() ast.Stmt {
	start := p.advance() // 'casovar'
	val := p.parseExpr()
	p.expect(lexer.LBrace, "'{'")
	sw := &ast.SwitchStmt{Pos: p.astPos(start), Value: val}
	for p.curKind() == lexer.KwCasose {
		caseStart := p.advance()
		if p.curKind() == lexer.String {
			lbl := p.advance()
			p.expect(lexer.Colon, "':'")
			body := p.parseStmtsUntil(lexer.KwCasose, lexer.KwCasofim, lexer.RBrace)
			sw.Cases = append(sw.Cases, ast.SwitchCase{Pos: p.astPos(caseStart), Label: lbl.Lexeme, Body: body})
			continue
		}
		// `casose:` with no label is the default arm.
		p.expect(lexer.Colon, "':'")
		sw.HasDef = true
		sw.Default = p.parseStmtsUntil(lexer.KwCasofim, lexer.RBrace)
	}
	if p.curKind() == lexer.KwCasofim {
		p.advance()
	}
	p.expect(lexer.RBrace, "'}'")
	return sw
}

func (p *Parser) parseReturn() ast.Stmt {
	start := p.advance() // 'ret'
	stmt := &ast.ReturnStmt{Pos: p.astPos(start)}
	if p.isBodyEnd() {
		return stmt
	}
	first := p.parseExpr()
	if p.curKind() == lexer.Comma {
		p.advance()
		stmt.Cond = first
		stmt.Value = p.parseExpr()
	} else {
		stmt.Value = first
	}
	return stmt
}

func (p *Parser) parseExit() ast.Stmt {
	start := p.advance()
	stmt := &ast.ExitStmt{Pos: p.astPos(start)}
	if !p.isBodyEnd() {
		stmt.Cond = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseContinue() ast.Stmt {
	start := p.advance()
	stmt := &ast.ContinueStmt{Pos: p.astPos(start)}
	if !p.isBodyEnd() {
		stmt.Cond = p.parseExpr()
	}
	return stmt
}

func (p *Parser) parseExprStmt() ast.Stmt {
	start := p.cur()
	stmt := &ast.ExprStmt{Pos: p.astPos(start)}
	stmt.Exprs = append(stmt.Exprs, p.parseExpr())
	for p.curKind() == lexer.Comma {
		p.advance()
		stmt.Exprs = append(stmt.Exprs, p.parseExpr())
	}
	return stmt
}

// isBodyEnd reports whether the current token plausibly ends a statement
// (used where the grammar has no explicit statement terminator): end of
// body/member/file, or one of the given terminator kinds.
func (p *Parser) isBodyEnd(extra ...lexer.Kind) bool {
	switch p.curKind() {
	case lexer.EOF, lexer.RBrace, lexer.KwSenao, lexer.KwFimse, lexer.KwEfim,
		lexer.KwEpara, lexer.KwCasose, lexer.KwCasofim,
		lexer.KwFunc, lexer.KwVarfunc, lexer.KwConst, lexer.KwVarconst:
		return true
	}
	if p.isClassDefinitionStart() {
		return true
	}
	for _, k := range extra {
		if p.curKind() == k {
			return true
		}
	}
	return false
}

// parseStmtsUntil parses statements until one of the stop kinds, a member
// boundary, or EOF is reached.
func (p *Parser) parseStmtsUntil(stop ...lexer.Kind) []ast.Stmt {
	var stmts []ast.Stmt
	for {
		if p.curKind() == lexer.EOF || p.atMemberStart() || p.isClassDefinitionStart() {
			break
		}
		stopped := false
		for _, k := range stop {
			if p.curKind() == k {
				stopped = true
				break
			}
		}
		if stopped {
			break
		}
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}
