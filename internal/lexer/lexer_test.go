package lexer_test

import (
	"testing"

	"github.com/magoolation/intmud.net-sub002/internal/lexer"
)

func kinds(toks []lexer.Token) []lexer.Kind {
	out := make([]lexer.Kind, 0, len(toks))
	for _, t := range toks {
		if t.Channel == lexer.Default {
			out = append(out, t.Kind)
		}
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks, errs := lexer.Tokenize("classe c herda b { func soma: ret arg0 + arg1 }")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got := kinds(toks)
	want := []lexer.Kind{
		lexer.KwClasse, lexer.Ident, lexer.KwHerda, lexer.Ident,
		lexer.LBrace, lexer.KwFunc, lexer.Ident, lexer.Colon,
		lexer.KwRet, lexer.Ident, lexer.Plus, lexer.Ident,
		lexer.RBrace, lexer.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestCaseInsensitiveKeyword(t *testing.T) {
	toks, _ := lexer.Tokenize("CLASSE Foo")
	if toks[0].Kind != lexer.KwClasse {
		t.Fatalf("expected KwClasse for uppercase spelling, got %v", toks[0].Kind)
	}
	if toks[0].Lexeme != "CLASSE" {
		t.Fatalf("expected case-preserved lexeme, got %q", toks[0].Lexeme)
	}
}

func TestMaximalMunchOperators(t *testing.T) {
	toks, _ := lexer.Tokenize("a === b !== c <= d >= e ?? f ?: g << 1 >>= 2")
	got := kinds(toks)
	want := []lexer.Kind{
		lexer.Ident, lexer.StrictEq, lexer.Ident, lexer.StrictNe, lexer.Ident,
		lexer.Le, lexer.Ident, lexer.Ge, lexer.Ident, lexer.Coalesce, lexer.Ident,
		lexer.Elvis, lexer.Ident, lexer.Shl, lexer.Int, lexer.ShrAssign, lexer.Int,
		lexer.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestHiddenChannelNewlinesPreserved(t *testing.T) {
	toks, _ := lexer.Tokenize("x\n++y")
	foundNewline := false
	for _, tok := range toks {
		if tok.Kind == lexer.Newline {
			foundNewline = true
		}
	}
	if !foundNewline {
		t.Fatal("expected a hidden Newline token between x and ++y")
	}
}

func TestStringEscapes(t *testing.T) {
	toks, errs := lexer.Tokenize(`"a\nb\tc\"d"`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Lexeme != "a\nb\tc\"d" {
		t.Fatalf("got %q", toks[0].Lexeme)
	}
}

func TestUnterminatedStringIsLexicalError(t *testing.T) {
	_, errs := lexer.Tokenize(`"never closed`)
	if len(errs) != 1 || errs[0].Kind != lexer.UnterminatedString {
		t.Fatalf("expected one UnterminatedString error, got %v", errs)
	}
}

func TestMalformedNumberIsLexicalError(t *testing.T) {
	_, errs := lexer.Tokenize("123abc")
	if len(errs) != 1 || errs[0].Kind != lexer.BadNumber {
		t.Fatalf("expected one BadNumber error, got %v", errs)
	}
}

func TestHexLiteral(t *testing.T) {
	toks, errs := lexer.Tokenize("0xFF 0x1A2b")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Kind != lexer.Int || toks[0].Lexeme != "0xFF" {
		t.Fatalf("got %v", toks[0])
	}
}

func TestAccentedIdentifierNormalization(t *testing.T) {
	nfc := "Jos\u00e9" // precomposed e-acute
	nfd := "Jose\u0301" // e followed by a combining acute accent
	if lexer.NormalizeIdent(nfc) != lexer.NormalizeIdent(nfd) {
		t.Fatalf("expected NFC/NFD forms to normalize equal: %q vs %q", nfc, nfd)
	}
	if lexer.NormalizeIdent("JOS\u00c9") != lexer.NormalizeIdent("jos\u00e9") {
		t.Fatal("expected case-insensitive normalization")
	}
}

func TestDynamicNameTokens(t *testing.T) {
	toks, errs := lexer.Tokenize(`passo[tpasso]@`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got := kinds(toks)
	want := []lexer.Kind{lexer.Ident, lexer.LBracket, lexer.Ident, lexer.RBracket, lexer.At, lexer.EOF}
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}
