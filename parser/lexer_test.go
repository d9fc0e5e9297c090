package parser

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) { } [ ] , ; : = ->`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenComma, ","},
		{TokenSemi, ";"},
		{TokenColon, ":"},
		{TokenAssign, "="},
		{TokenArrow, "->"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `+ - * / == != > < >= <= & | <<`
	want := []string{"+", "-", "*", "/", "==", "!=", ">", "<", ">=", "<=", "&", "|", "<<"}

	l := NewLexer(input)
	for i, lit := range want {
		tok := l.NextToken()
		if tok.Type != TokenOp {
			t.Errorf("token[%d] type = %v, want OPERATOR", i, tok.Type)
		}
		if tok.Literal != lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, lit)
		}
	}
	if tok := l.NextToken(); tok.Type != TokenEOF {
		t.Errorf("trailing token = %v, want EOF", tok)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInt, "42"},
		{"0", TokenInt, "0"},
		{"-123", TokenInt, "-123"},
		{"1f", TokenFloat, "1f"},
		{"1.5f", TokenFloat, "1.5f"},
		{"-2.25f", TokenFloat, "-2.25f"},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerFloatWithoutSuffix(t *testing.T) {
	l := NewLexer("1.5")
	tok := l.NextToken()
	if tok.Type != TokenError {
		t.Fatalf("Lexer(1.5): type = %v, want ERROR", tok.Type)
	}
	if tok.Literal != "float literal must end in 'f'" {
		t.Errorf("Lexer(1.5): message = %q", tok.Literal)
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}

	for _, bad := range []string{`"unterminated`, `"bad \q escape"`} {
		l := NewLexer(bad)
		if tok := l.NextToken(); tok.Type != TokenError {
			t.Errorf("Lexer(%s): type = %v, want ERROR", bad, tok.Type)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"function", TokenFunction},
		{"var", TokenVar},
		{"const", TokenConst},
		{"if", TokenIf},
		{"else", TokenElse},
		{"loop", TokenLoop},
		{"while", TokenWhile},
		{"break", TokenBreak},
		{"return", TokenReturn},
		{"goto", TokenGoto},
		{"trap", TokenTrap},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"i32", TokenI32},
		{"f64", TokenF64},
		{"bool", TokenBool},
		{"str", TokenStr},
		{"any", TokenAny},
		{"HT", TokenHT},
		{"Array", TokenArray},
		{"main", TokenIdent},
		{"whileLoop", TokenIdent}, // not a keyword prefix match
		{"_tmp", TokenIdent},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `// a line comment
var /* inline */ x
/* multi
   line */ y`

	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenVar, "var"},
		{TokenIdent, "x"},
		{TokenIdent, "y"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range want {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.lit {
			t.Errorf("token[%d] = %v, want %v(%q)", i, tok, exp.typ, exp.lit)
		}
	}

	l = NewLexer("/* never closed")
	if tok := l.NextToken(); tok.Type != TokenError || tok.Literal != "unterminated block comment" {
		t.Errorf("unterminated comment: got %v", tok)
	}
}

func TestLexerPositions(t *testing.T) {
	input := "var x\n  = 5"
	l := NewLexer(input)

	tok := l.NextToken() // var
	if tok.Pos.Line != 1 || tok.Pos.Column != 1 {
		t.Errorf("var at %d:%d, want 1:1", tok.Pos.Line, tok.Pos.Column)
	}
	tok = l.NextToken() // x
	if tok.Pos.Line != 1 || tok.Pos.Column != 5 {
		t.Errorf("x at %d:%d, want 1:5", tok.Pos.Line, tok.Pos.Column)
	}
	tok = l.NextToken() // =
	if tok.Pos.Line != 2 || tok.Pos.Column != 3 {
		t.Errorf("= at %d:%d, want 2:3", tok.Pos.Line, tok.Pos.Column)
	}
	tok = l.NextToken() // 5
	if tok.Pos.Line != 2 || tok.Pos.Column != 5 {
		t.Errorf("5 at %d:%d, want 2:5", tok.Pos.Line, tok.Pos.Column)
	}
}
