package parser

import (
	"strconv"
	"strings"

	"github.com/magoolation/intmud.net-sub002/internal/ast"
	"github.com/magoolation/intmud.net-sub002/internal/lexer"
)

func parseIntLiteral(lexeme string) int {
	if strings.HasPrefix(lexeme, "0x") || strings.HasPrefix(lexeme, "0X") {
		v, _ := strconv.ParseInt(lexeme[2:], 16, 64)
		return int(v)
	}
	v, _ := strconv.ParseInt(lexeme, 10, 64)
	return int(v)
}

func (p *Parser) parseExpr() ast.Expr { return p.parseAssignment() }

var compoundAssignOps = map[lexer.Kind]ast.AssignOp{
	lexer.PlusAssign:    ast.AssignAdd,
	lexer.MinusAssign:   ast.AssignSub,
	lexer.StarAssign:    ast.AssignMul,
	lexer.SlashAssign:   ast.AssignDiv,
	lexer.PercentAssign: ast.AssignMod,
	lexer.AmpAssign:     ast.AssignAnd,
	lexer.PipeAssign:    ast.AssignOr,
	lexer.CaretAssign:   ast.AssignXor,
	lexer.ShlAssign:     ast.AssignShl,
	lexer.ShrAssign:     ast.AssignShr,
}

func (p *Parser) parseAssignment() ast.Expr {
	left := p.parseConditional()
	if p.curKind() == lexer.Assign {
		tok := p.advance()
		right := p.parseAssignment()
		return &ast.AssignExpr{Pos: p.astPos(tok), Op: ast.AssignPlain, Target: left, Value: right}
	}
	if op, ok := compoundAssignOps[p.curKind()]; ok {
		tok := p.advance()
		right := p.parseAssignment()
		return &ast.AssignExpr{Pos: p.astPos(tok), Op: op, Target: left, Value: right}
	}
	return left
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseCoalesce()
	if p.curKind() == lexer.Question {
		tok := p.advance()
		then := p.parseAssignment()
		p.expect(lexer.Colon, "':'")
		els := p.parseAssignment()
		return &ast.ConditionalExpr{Pos: p.astPos(tok), Cond: cond, Then: then, Else: els}
	}
	if p.curKind() == lexer.Elvis {
		tok := p.advance()
		els := p.parseAssignment()
		return &ast.ConditionalExpr{Pos: p.astPos(tok), Cond: cond, Then: cond, Else: els}
	}
	return cond
}

func (p *Parser) parseCoalesce() ast.Expr {
	left := p.parseLogicalOr()
	for p.curKind() == lexer.Coalesce {
		tok := p.advance()
		right := p.parseLogicalOr()
		left = &ast.CoalesceExpr{Pos: p.astPos(tok), Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.curKind() == lexer.OrOr {
		tok := p.advance()
		right := p.parseLogicalAnd()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitOr()
	for p.curKind() == lexer.AndAnd {
		tok := p.advance()
		right := p.parseBitOr()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.curKind() == lexer.Pipe {
		tok := p.advance()
		right := p.parseBitXor()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: ast.OpBitOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.curKind() == lexer.Caret {
		tok := p.advance()
		right := p.parseBitAnd()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: ast.OpBitXor, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseEquality()
	for p.curKind() == lexer.Amp {
		tok := p.advance()
		right := p.parseEquality()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: ast.OpBitAnd, Left: left, Right: right}
	}
	return left
}

var equalityOps = map[lexer.Kind]ast.BinOp{
	lexer.Eq: ast.OpEq, lexer.StrictEq: ast.OpStrictEq,
	lexer.Ne: ast.OpNe, lexer.StrictNe: ast.OpStrictNe,
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for {
		op, ok := equalityOps[p.curKind()]
		if !ok {
			return left
		}
		tok := p.advance()
		right := p.parseRelational()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: op, Left: left, Right: right}
	}
}

var relationalOps = map[lexer.Kind]ast.BinOp{
	lexer.Lt: ast.OpLt, lexer.Le: ast.OpLe, lexer.Gt: ast.OpGt, lexer.Ge: ast.OpGe,
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseShift()
	for {
		op, ok := relationalOps[p.curKind()]
		if !ok {
			return left
		}
		tok := p.advance()
		right := p.parseShift()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseAdditive()
	for p.curKind() == lexer.Shl || p.curKind() == lexer.Shr {
		tok := p.advance()
		op := ast.OpShl
		if tok.Kind == lexer.Shr {
			op = ast.OpShr
		}
		right := p.parseAdditive()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.curKind() == lexer.Plus || p.curKind() == lexer.Minus {
		tok := p.advance()
		op := ast.OpAdd
		if tok.Kind == lexer.Minus {
			op = ast.OpSub
		}
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: op, Left: left, Right: right}
	}
	return left
}

var multiplicativeOps = map[lexer.Kind]ast.BinOp{
	lexer.Star: ast.OpMul, lexer.Slash: ast.OpDiv, lexer.Percent: ast.OpMod,
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		op, ok := multiplicativeOps[p.curKind()]
		if !ok {
			return left
		}
		tok := p.advance()
		right := p.parseUnary()
		left = &ast.BinaryExpr{Pos: p.astPos(tok), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.curKind() {
	case lexer.Minus:
		tok := p.advance()
		return &ast.UnaryExpr{Pos: p.astPos(tok), Op: ast.OpNeg, Operand: p.parseUnary()}
	case lexer.Bang:
		tok := p.advance()
		return &ast.UnaryExpr{Pos: p.astPos(tok), Op: ast.OpNot, Operand: p.parseUnary()}
	case lexer.Tilde:
		tok := p.advance()
		return &ast.UnaryExpr{Pos: p.astPos(tok), Op: ast.OpBitNot, Operand: p.parseUnary()}
	case lexer.Inc:
		tok := p.advance()
		return &ast.UnaryExpr{Pos: p.astPos(tok), Op: ast.OpPreInc, Operand: p.parseUnary()}
	case lexer.Dec:
		tok := p.advance()
		return &ast.UnaryExpr{Pos: p.astPos(tok), Op: ast.OpPreDec, Operand: p.parseUnary()}
	default:
		return p.parsePostfix()
	}
}

// parsePostfix implements spec §4.2 predicate 1: postfix ++/-- match only
// when no newline token lies between the previous visible token and the
// current one, preventing `x \n ++y` from parsing as `x++ +y`.
func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimaryChain()
	for (p.curKind() == lexer.Inc || p.curKind() == lexer.Dec) && !p.newlineBeforeCurrent() {
		tok := p.advance()
		op := ast.OpPostInc
		if tok.Kind == lexer.Dec {
			op = ast.OpPostDec
		}
		expr = &ast.PostfixExpr{Pos: p.astPos(tok), Op: op, Operand: expr}
	}
	return expr
}

// parsePrimaryChain parses a primary expression followed by any sequence
// of member-access, index-access, and call suffixes.
func (p *Parser) parsePrimaryChain() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.curKind() {
		case lexer.Dot:
			expr = p.parseMemberSuffix(expr)
		case lexer.LBracket:
			tok := p.advance()
			idx := p.parseExpr()
			p.expect(lexer.RBracket, "']'")
			expr = &ast.IndexExpr{Pos: p.astPos(tok), Collection: expr, Index: idx}
		case lexer.LParen:
			expr = p.parseCallSuffix(expr)
		default:
			return expr
		}
	}
}

// memberKeywordsAsNames is the superset of keywords admitted as a member
// name after a `.` (spec §4.2: "an additional superset of keywords (e.g.
// func, const) is admitted as a member name").
var memberKeywordsAsNames = map[lexer.Kind]bool{
	lexer.KwFunc: true, lexer.KwConst: true, lexer.KwVarfunc: true,
	lexer.KwVarconst: true, lexer.KwSav: true, lexer.KwComum: true,
	lexer.KwNovo: true, lexer.KwArg: true, lexer.KwClasse: true,
}

func (p *Parser) parseMemberSuffix(obj ast.Expr) ast.Expr {
	dot := p.advance()
	if p.curKind() == lexer.LBracket || (p.curKind() == lexer.Ident && p.peekAt(1).Kind == lexer.LBracket) {
		parts, countdown := p.parseDynamicNameParts()
		return &ast.DynamicMemberAccess{Pos: p.astPos(dot), Object: obj, NameParts: parts, Countdown: countdown}
	}
	nameTok := p.cur()
	if nameTok.Kind != lexer.Ident && !memberKeywordsAsNames[nameTok.Kind] {
		p.addErr("member name")
	}
	p.advance()
	return &ast.MemberAccess{Pos: p.astPos(dot), Object: obj, Name: nameTok.Lexeme}
}

func (p *Parser) parseCallSuffix(callee ast.Expr) ast.Expr {
	lp := p.advance()
	var args []ast.Expr
	if p.curKind() != lexer.RParen {
		args = append(args, p.parseAssignment())
		for p.curKind() == lexer.Comma {
			p.advance()
			args = append(args, p.parseAssignment())
		}
	}
	p.expect(lexer.RParen, "')'")
	return &ast.CallExpr{Pos: p.astPos(lp), Callee: callee, Args: args}
}

// parseDynamicNameParts parses the fragment list of a dynamic identifier:
// optional leading literal, then `[expr]` groups optionally separated by
// literal `_`-joined suffixes, e.g. `passo[i]`, `[x]_[y]`. A trailing `@`
// marks the countdown variant.
func (p *Parser) parseDynamicNameParts() ([]ast.NamePart, bool) {
	var parts []ast.NamePart
	if p.curKind() == lexer.Ident {
		parts = append(parts, ast.NamePart{Literal: p.advance().Lexeme})
	}
	for p.curKind() == lexer.LBracket {
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RBracket, "']'")
		parts = append(parts, ast.NamePart{Expr: e})
		if p.curKind() == lexer.Ident {
			parts = append(parts, ast.NamePart{Literal: p.advance().Lexeme})
		}
	}
	countdown := false
	if p.curKind() == lexer.At {
		p.advance()
		countdown = true
	}
	return parts, countdown
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case lexer.Int:
		p.advance()
		return &ast.IntLiteral{Pos: p.astPos(t), Value: int64(parseIntLiteral(t.Lexeme))}
	case lexer.Float:
		p.advance()
		v, _ := strconv.ParseFloat(t.Lexeme, 64)
		return &ast.FloatLiteral{Pos: p.astPos(t), Value: v}
	case lexer.String:
		p.advance()
		sb := strings.Builder{}
		sb.WriteString(t.Lexeme)
		// Adjacent string literals are concatenated at parse time (spec §3).
		for p.curKind() == lexer.String {
			sb.WriteString(p.advance().Lexeme)
		}
		return &ast.StringLiteral{Pos: p.astPos(t), Value: sb.String()}
	case lexer.KwNulo:
		p.advance()
		return &ast.NullLiteral{Pos: p.astPos(t)}
	case lexer.KwEste:
		p.advance()
		return &ast.ThisExpr{Pos: p.astPos(t)}
	case lexer.KwArgs:
		p.advance()
		return &ast.ArgsCountRef{Pos: p.astPos(t)}
	case lexer.KwArg:
		// Bare "arg" in a position requiring a name (spec §4.2 contextual
		// keywords); "arg0".."arg9" lex as plain identifiers and are
		// recognized below in parseIdentOrClassRef.
		p.advance()
		return &ast.Ident{Pos: p.astPos(t), Name: t.Lexeme}
	case lexer.KwNovo:
		return p.parseNew()
	case lexer.KwApagar:
		p.advance()
		return &ast.DeleteExpr{Pos: p.astPos(t), Target: p.parseUnary()}
	case lexer.Dollar:
		return p.parseDollarRef()
	case lexer.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RParen, "')'")
		return e
	case lexer.LBracket:
		parts, countdown := p.parseDynamicNameParts()
		return &ast.DynamicIdentifier{Pos: p.astPos(t), NameParts: parts, Countdown: countdown}
	case lexer.Ident:
		return p.parseIdentOrClassRef()
	default:
		p.addErr("expression")
		p.advance()
		return &ast.NullLiteral{Pos: p.astPos(t)}
	}
}

// argRefIndex reports whether name matches "arg0".."arg9" and, if so, the
// argument index.
func argRefIndex(name string) (int, bool) {
	lower := strings.ToLower(name)
	if len(lower) == 4 && strings.HasPrefix(lower, "arg") && lower[3] >= '0' && lower[3] <= '9' {
		return int(lower[3] - '0'), true
	}
	return 0, false
}

func (p *Parser) parseNew() ast.Expr {
	start := p.advance() // 'novo'
	name := p.asIdentName()
	expr := &ast.NewExpr{Pos: p.astPos(start), ClassName: name}
	if p.curKind() == lexer.LParen {
		p.advance()
		if p.curKind() != lexer.RParen {
			expr.Args = append(expr.Args, p.parseAssignment())
			for p.curKind() == lexer.Comma {
				p.advance()
				expr.Args = append(expr.Args, p.parseAssignment())
			}
		}
		p.expect(lexer.RParen, "')'")
	}
	return expr
}

func (p *Parser) parseDollarRef() ast.Expr {
	start := p.advance() // '$'
	if p.curKind() == lexer.LBracket {
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RBracket, "']'")
		return &ast.DollarRef{Pos: p.astPos(start), Dynamic: e}
	}
	name := p.asIdentName()
	return &ast.DollarRef{Pos: p.astPos(start), ClassName: name}
}

// parseIdentOrClassRef parses a bare identifier, a dynamic identifier
// (`name[expr]...`), or a class-ref (`Class:member`, either side possibly
// dynamic).
func (p *Parser) parseIdentOrClassRef() ast.Expr {
	t := p.advance()
	if idx, ok := argRefIndex(t.Lexeme); ok && p.curKind() != lexer.LBracket && p.curKind() != lexer.Colon {
		return &ast.ArgRef{Pos: p.astPos(t), Index: idx}
	}
	if p.curKind() == lexer.LBracket {
		// Re-synthesize the already-consumed leading identifier as the
		// first name part before continuing the bracket-group scan.
		parts := []ast.NamePart{{Literal: t.Lexeme}}
		for p.curKind() == lexer.LBracket {
			p.advance()
			e := p.parseExpr()
			p.expect(lexer.RBracket, "']'")
			parts = append(parts, ast.NamePart{Expr: e})
			if p.curKind() == lexer.Ident {
				parts = append(parts, ast.NamePart{Literal: p.advance().Lexeme})
			}
		}
		countdown := false
		if p.curKind() == lexer.At {
			p.advance()
			countdown = true
		}
		if p.curKind() == lexer.Colon {
			p.advance()
			return p.finishClassRefDynamic(t.Pos, parts, countdown)
		}
		return &ast.DynamicIdentifier{Pos: p.astPos(t), NameParts: parts, Countdown: countdown}
	}
	if p.curKind() == lexer.Colon {
		p.advance()
		return p.finishClassRef(t)
	}
	return &ast.Ident{Pos: p.astPos(t), Name: t.Lexeme}
}

func (p *Parser) finishClassRef(classTok lexer.Token) ast.Expr {
	ref := &ast.ClassRef{Pos: p.astPos(classTok), ClassName: classTok.Lexeme}
	if p.curKind() == lexer.LBracket || (p.curKind() == lexer.Ident && p.peekAt(1).Kind == lexer.LBracket) {
		parts, _ := p.parseDynamicNameParts()
		ref.MemberNameParts = parts
		return ref
	}
	ref.MemberName = p.asIdentName()
	return ref
}

func (p *Parser) finishClassRefDynamic(classPos lexer.Position, classParts []ast.NamePart, _ bool) ast.Expr {
	ref := &ast.ClassRef{Pos: ast.PosFrom(classPos), ClassNameParts: classParts}
	if p.curKind() == lexer.LBracket || (p.curKind() == lexer.Ident && p.peekAt(1).Kind == lexer.LBracket) {
		parts, _ := p.parseDynamicNameParts()
		ref.MemberNameParts = parts
		return ref
	}
	ref.MemberName = p.asIdentName()
	return ref
}
