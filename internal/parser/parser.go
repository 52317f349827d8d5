// Package parser builds the typed AST (internal/ast) from a token stream
// (internal/lexer) using operator-precedence climbing for expressions and
// two semantic predicates for the grammar's context-sensitive ambiguities
// (spec §4.2).
package parser

import (
	"fmt"

	"github.com/magoolation/intmud.net-sub002/internal/ast"
	"github.com/magoolation/intmud.net-sub002/internal/lexer"
)

// Parser is a recursive-descent parser with a buffered token stream that
// keeps hidden-channel tokens (newlines, comments) addressable for
// lookbehind predicates.
type Parser struct {
	file string
	toks []lexer.Token // every token, including hidden-channel ones
	vis  []int         // indices into toks of Default-channel tokens
	pos  int           // index into vis of the current lookahead token
	errs []*Error
}

// New builds a Parser over src, tagging errors with fileName.
func New(src, fileName string) *Parser {
	toks, _ := lexer.Tokenize(src)
	p := &Parser{file: fileName, toks: toks}
	for i, t := range toks {
		if t.Channel == lexer.Default {
			p.vis = append(p.vis, i)
		}
	}
	return p
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []*Error { return p.errs }

// cur returns the current lookahead visible token.
func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.vis) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.vis[p.pos]]
}

// curKind is a convenience accessor.
func (p *Parser) curKind() lexer.Kind { return p.cur().Kind }

// peekAt looks n visible tokens ahead of the current one (0 == cur()).
func (p *Parser) peekAt(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.vis) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.vis[idx]]
}

// advance consumes the current visible token and returns it.
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.vis) {
		p.pos++
	}
	return t
}

// newlineBeforeCurrent reports whether a hidden Newline token appears
// between the previous visible token and the current one. Used by the
// "no newline before postfix ++/--" predicate (spec §4.2 rule 1).
func (p *Parser) newlineBeforeCurrent() bool {
	if p.pos == 0 || p.pos >= len(p.vis) {
		return false
	}
	prevRaw := p.vis[p.pos-1]
	curRaw := p.vis[p.pos]
	for i := prevRaw + 1; i < curRaw; i++ {
		if p.toks[i].Kind == lexer.Newline {
			return true
		}
	}
	return false
}

// addErr records a parse error at the current token without advancing;
// callers perform the single-token skip (spec §4.2). Errors past maxErrors
// are dropped.
func (p *Parser) addErr(expected string) {
	if len(p.errs) >= maxErrors {
		return
	}
	t := p.cur()
	p.errs = append(p.errs, &Error{
		File: p.file, Line: t.Pos.Line, Column: t.Pos.Column,
		Expected: expected, Found: fmt.Sprintf("%v %q", t.Kind, t.Lexeme),
	})
}

// expect consumes the current token if it matches kind, else records an
// error and performs single-token-skip recovery.
func (p *Parser) expect(kind lexer.Kind, expected string) lexer.Token {
	if p.curKind() == kind {
		return p.advance()
	}
	p.addErr(expected)
	return p.advance()
}

// astPos converts token t's position into an ast.Pos.
func (p *Parser) astPos(t lexer.Token) ast.Pos { return ast.PosFrom(t.Pos) }

// recoverToStatementEnd skips at most one token after a parse error,
// stopping without consuming anything at `}` or EOF.
func (p *Parser) recoverToStatementEnd() {
	for p.curKind() != lexer.EOF && p.curKind() != lexer.RBrace {
		// A Newline is hidden-channel, so the only visible signal we have
		// is advancing until the next member/statement-starting keyword;
		// conservatively we just consume one token at a time up to RBrace.
		p.advance()
		return
	}
}

// ParseFile parses a full compilation unit: file header options followed
// by zero or more class definitions.
func (p *Parser) ParseFile() *ast.CompilationUnit {
	unit := &ast.CompilationUnit{Pos: p.astPos(p.cur()), FileName: p.file}
	for p.atFileOption() {
		unit.Options = append(unit.Options, p.parseFileOption())
	}
	for p.curKind() != lexer.EOF {
		if p.curKind() != lexer.KwClasse {
			p.addErr("'classe'")
			p.advance()
			continue
		}
		unit.Classes = append(unit.Classes, p.parseClass())
	}
	return unit
}

func (p *Parser) atFileOption() bool {
	switch p.curKind() {
	case lexer.KwIncluir, lexer.KwExec, lexer.KwTelatxt, lexer.KwLog,
		lexer.KwErr, lexer.KwCompleto, lexer.KwArqexec:
		return true
	}
	return false
}

func (p *Parser) parseFileOption() ast.FileOption {
	t := p.advance()
	opt := ast.FileOption{Pos: p.astPos(t), Name: t.Lexeme}
	if p.curKind() == lexer.Assign {
		p.advance()
		val := p.advance()
		opt.Value = val.Lexeme
	} else {
		// `arqexec CMD...` form: slurp the following tokens, up to the
		// next file option or `classe`, as the value, since CMD is
		// free-form and not itself tokenized specially.
		for p.curKind() != lexer.EOF && !p.atFileOption() && p.curKind() != lexer.KwClasse {
			opt.Value += p.advance().Lexeme + " "
		}
	}
	return opt
}

// isClassDefinitionStart implements spec §4.2 predicate 2: the
// class-keyword must not be consumed as an identifier when it is followed
// by an identifier on the visible channel — that combination starts a new
// class and terminates the current statement list.
func (p *Parser) isClassDefinitionStart() bool {
	return p.curKind() == lexer.KwClasse && p.peekAt(1).Kind == lexer.Ident
}

func (p *Parser) parseClass() *ast.ClassDecl {
	start := p.advance() // 'classe'
	nameTok := p.expect(lexer.Ident, "class name")
	decl := &ast.ClassDecl{Pos: p.astPos(start), Name: nameTok.Lexeme}
	if p.curKind() == lexer.KwHerda {
		p.advance()
		decl.Bases = append(decl.Bases, p.expect(lexer.Ident, "base class name").Lexeme)
		for p.curKind() == lexer.Comma {
			p.advance()
			decl.Bases = append(decl.Bases, p.expect(lexer.Ident, "base class name").Lexeme)
		}
	}
	p.expect(lexer.LBrace, "'{'")
	for p.curKind() != lexer.RBrace && p.curKind() != lexer.EOF {
		if p.isClassDefinitionStart() {
			break
		}
		m := p.parseMember()
		if m != nil {
			decl.Members = append(decl.Members, m)
		}
	}
	p.expect(lexer.RBrace, "'}'")
	return decl
}

// asIdentName admits context-sensitive keywords as plain identifiers
// (spec §4.2: class-keyword-as-constant-name, sav, novo, arg, common,
// "para", and type names) wherever the grammar needs a name.
func (p *Parser) asIdentName() string {
	t := p.cur()
	if t.Kind == lexer.Ident || lexer.ContextualKeywords[t.Kind] {
		p.advance()
		return t.Lexeme
	}
	p.addErr("identifier")
	return p.advance().Lexeme
}

func (p *Parser) parseMember() ast.Member {
	switch p.curKind() {
	case lexer.KwFunc:
		return p.parseFuncDecl(false)
	case lexer.KwVarfunc:
		return p.parseFuncDecl(true)
	case lexer.KwConst:
		return p.parseConstDecl()
	case lexer.KwVarconst:
		return p.parseVarConstDecl()
	default:
		return p.parseVarDecl()
	}
}

func (p *Parser) parseFuncDecl(virtual bool) ast.Member {
	start := p.advance()
	name := p.asIdentName()
	p.expect(lexer.Colon, "':'")
	body := p.parseStmtListUntilMemberBoundary()
	if virtual {
		return &ast.VarFuncDecl{Pos: p.astPos(start), Name: name, Body: body}
	}
	return &ast.FuncDecl{Pos: p.astPos(start), Name: name, Virtual: false, Body: body}
}

func (p *Parser) parseConstDecl() ast.Member {
	start := p.advance()
	name := p.asIdentName()
	p.expect(lexer.Assign, "'='")
	val := p.parseExpr()
	return &ast.ConstDecl{Pos: p.astPos(start), Name: name, Value: val}
}

func (p *Parser) parseVarConstDecl() ast.Member {
	start := p.advance()
	name := p.asIdentName()
	p.expect(lexer.Assign, "'='")
	val := p.parseExpr()
	return &ast.VarConstDecl{Pos: p.astPos(start), Name: name, Value: val}
}

// parseVarDecl handles `[comum|sav] type name [[size]] [= init]`.
func (p *Parser) parseVarDecl() ast.Member {
	start := p.cur()
	var mods ast.VarModifier
	for {
		switch p.curKind() {
		case lexer.KwComum:
			mods |= ast.ModComum
			p.advance()
			continue
		case lexer.KwSav:
			mods |= ast.ModSav
			p.advance()
			continue
		}
		break
	}
	typeName := p.asIdentName()
	typeSize := 0
	if p.curKind() == lexer.LParen {
		p.advance()
		sizeTok := p.expect(lexer.Int, "type size")
		typeSize = parseIntLiteral(sizeTok.Lexeme)
		p.expect(lexer.RParen, "')'")
	}
	name := p.asIdentName()
	decl := &ast.VarDecl{Pos: p.astPos(start), Modifiers: mods, TypeName: typeName, TypeSize: typeSize, Name: name}
	if p.curKind() == lexer.LBracket {
		p.advance()
		decl.VectorSize = p.parseExpr()
		p.expect(lexer.RBracket, "']'")
	}
	if p.curKind() == lexer.Assign {
		p.advance()
		decl.Initializer = p.parseExpr()
	}
	return decl
}

// parseStmtListUntilMemberBoundary parses statements until the next member
// declaration or the enclosing class's closing brace.
func (p *Parser) parseStmtListUntilMemberBoundary() []ast.Stmt {
	var stmts []ast.Stmt
	for p.curKind() != lexer.RBrace && p.curKind() != lexer.EOF {
		if p.isClassDefinitionStart() || p.atMemberStart() {
			break
		}
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}

func (p *Parser) atMemberStart() bool {
	switch p.curKind() {
	case lexer.KwFunc, lexer.KwVarfunc, lexer.KwConst, lexer.KwVarconst:
		return true
	}
	return false
}
