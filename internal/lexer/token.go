// Package lexer turns IntMud source text into a stream of tagged tokens.
//
// Hidden-channel tokens (newlines, comments) stay addressable so the parser
// can do lookbehind for its two semantic predicates (see internal/parser).
package lexer

import "fmt"

// Channel distinguishes tokens the parser consumes directly from tokens
// it only inspects via lookbehind.
type Channel byte

const (
	// Default is the parser-visible channel.
	Default Channel = iota
	// Hidden carries whitespace-significant newlines and comments.
	Hidden
)

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Illegal

	Ident
	Int
	Float
	String

	Newline
	Comment

	// keywords
	KwClasse
	KwHerda
	KwFunc
	KwVarfunc
	KwConst
	KwVarconst
	KwRefvar
	KwSe
	KwSenao
	KwFimse
	KwEnquanto
	KwEfim
	KwEpara
	KwPara
	KwCada
	KwEm
	KwCasovar
	KwCasose
	KwCasofim
	KwRet
	KwSair
	KwContinuar
	KwTerminar
	KwNovo
	KwApagar
	KwNulo
	KwEste
	KwArg
	KwArgs
	KwComum
	KwSav
	KwIncluir
	KwExec
	KwTelatxt
	KwLog
	KwErr
	KwCompleto
	KwArqexec

	// operators / punctuation
	Plus     // +
	Minus    // -
	Star     // *
	Slash    // /
	Percent  // %
	Amp      // &
	Pipe     // |
	Caret    // ^
	Tilde    // ~
	Bang     // !
	Assign   // =
	Lt       // <
	Gt       // >
	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
	LBrace   // {
	RBrace   // }
	Comma    // ,
	Dot      // .
	Colon    // :
	Question // ?
	At       // @
	Dollar   // $
	Semi     // ;
	Shl      // <<
	Shr      // >>

	Eq       // ==
	StrictEq // ===
	Ne       // !=
	StrictNe // !==
	Le       // <=
	Ge       // >=
	Inc      // ++
	Dec      // --
	AndAnd   // &&
	OrOr     // ||
	Elvis    // ?:
	Coalesce // ??

	PlusAssign    // +=
	MinusAssign   // -=
	StarAssign    // *=
	SlashAssign   // /=
	PercentAssign // %=
	AmpAssign     // &=
	PipeAssign    // |=
	CaretAssign   // ^=
	ShlAssign     // <<=
	ShrAssign     // >>=
)

// Keywords maps the external-contract Portuguese lexemes to their Kind.
// Comparisons against this table are case-insensitive (spec §4.1).
var Keywords = map[string]Kind{
	"classe":    KwClasse,
	"herda":     KwHerda,
	"func":      KwFunc,
	"varfunc":   KwVarfunc,
	"const":     KwConst,
	"varconst":  KwVarconst,
	"refvar":    KwRefvar,
	"se":        KwSe,
	"senao":     KwSenao,
	"fimse":     KwFimse,
	"enquanto":  KwEnquanto,
	"efim":      KwEfim,
	"epara":     KwEpara,
	"para":      KwPara,
	"cada":      KwCada,
	"em":        KwEm,
	"casovar":   KwCasovar,
	"casose":    KwCasose,
	"casofim":   KwCasofim,
	"ret":       KwRet,
	"sair":      KwSair,
	"continuar": KwContinuar,
	"terminar":  KwTerminar,
	"novo":      KwNovo,
	"apagar":    KwApagar,
	"nulo":      KwNulo,
	"este":      KwEste,
	"arg":       KwArg,
	"args":      KwArgs,
	"comum":     KwComum,
	"sav":       KwSav,
	"incluir":   KwIncluir,
	"exec":      KwExec,
	"telatxt":   KwTelatxt,
	"log":       KwLog,
	"err":       KwErr,
	"completo":  KwCompleto,
	"arqexec":   KwArqexec,
}

// ContextualKeywords may be re-admitted as plain identifiers where the
// surrounding grammar requires a name (spec §4.2): the class-keyword used
// as a constant name, sav, novo, apagar, arg, common, "para", and type
// names used as function identifiers all fall back to Ident in those
// positions. The parser, not the lexer, makes that call; the lexer always
// reports the keyword Kind and leaves reclassification to parser
// predicates. novo/apagar specifically must remain usable as function
// names since they double as the constructor/destructor naming
// convention (spec §9 open question 1).
var ContextualKeywords = map[Kind]bool{
	KwClasse: true,
	KwSav:    true,
	KwNovo:   true,
	KwApagar: true,
	KwArg:    true,
	KwComum:  true,
	KwPara:   true,
}

// Position is a 1-based line/column pair plus byte offset into the source.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical unit: its kind, the exact source spelling
// (case preserved), and its position. Channel marks whether the parser
// consumes it directly or only via lookbehind.
type Token struct {
	Lexeme  string
	Kind    Kind
	Pos     Position
	Channel Channel
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%s", t.Kind, t.Lexeme, t.Pos)
}

// kindNames gives a human name for error messages.
var kindNames = map[Kind]string{
	EOF: "eof", Illegal: "illegal", Ident: "ident", Int: "int", Float: "float",
	String: "string", Newline: "newline", Comment: "comment",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	for lex, kw := range Keywords {
		if kw == k {
			return lex
		}
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsKeyword reports whether a Kind belongs to the language's reserved-word
// set (as opposed to Ident/literal/operator kinds).
func (k Kind) IsKeyword() bool {
	return k >= KwClasse && k <= KwArqexec
}
