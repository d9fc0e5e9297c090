package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nwlang/notwasm/syntax"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for NotWasm source text
// ---------------------------------------------------------------------------

// Lexer tokenizes NotWasm source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
	l.readChar()
	return l
}

// readChar reads the next character. Line and column always describe the
// character sitting in ch, so token positions point at their first rune.
func (l *Lexer) readChar() {
	if l.readPos > 0 { // advancing past an already-read character
		if l.ch == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() syntax.Position {
	return syntax.Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, bad := l.skipWhitespaceAndComments(); bad {
		return tok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case l.ch == ';':
		l.readChar()
		return Token{Type: TokenSemi, Literal: ";", Pos: pos}

	case l.ch == ':':
		l.readChar()
		return Token{Type: TokenColon, Literal: ":", Pos: pos}

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenOp, Literal: "==", Pos: pos}
		}
		return Token{Type: TokenAssign, Literal: "=", Pos: pos}

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenOp, Literal: "!=", Pos: pos}
		}
		return Token{Type: TokenError, Literal: "unexpected character: !", Pos: pos}

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenOp, Literal: ">=", Pos: pos}
		}
		return Token{Type: TokenOp, Literal: ">", Pos: pos}

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenOp, Literal: "<=", Pos: pos}
		}
		if l.ch == '<' {
			l.readChar()
			return Token{Type: TokenOp, Literal: "<<", Pos: pos}
		}
		return Token{Type: TokenOp, Literal: "<", Pos: pos}

	case l.ch == '-' && isDigit(l.peekChar()):
		return l.readNumber(pos)

	case l.ch == '-':
		l.readChar()
		if l.ch == '>' {
			l.readChar()
			return Token{Type: TokenArrow, Literal: "->", Pos: pos}
		}
		return Token{Type: TokenOp, Literal: "-", Pos: pos}

	case l.ch == '+' || l.ch == '*' || l.ch == '/' || l.ch == '&' || l.ch == '|':
		op := string(l.ch)
		l.readChar()
		return Token{Type: TokenOp, Literal: op, Pos: pos}

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments, and
// /* */ block comments. An unterminated block comment is a lex error.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.ch == 0 {
					return Token{Type: TokenError, Literal: "unterminated block comment", Pos: pos}, true
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					break
				}
				l.readChar()
			}
			continue
		}

		return Token{}, false
	}
}

// readString reads a double-quoted string literal with backslash escapes.
func (l *Lexer) readString(pos syntax.Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != 0 && l.ch != '"' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape: \\%c", l.ch), Pos: pos}
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != '"' {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer or float literal. Floats end in 'f'
// (1f, 1.5f, -2f); everything else is an i32 literal.
func (l *Lexer) readNumber(pos syntax.Position) Token {
	start := l.pos

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}

	sawDot := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		sawDot = true
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'f' {
		l.readChar()
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Pos: pos}
	}
	if sawDot {
		return Token{Type: TokenError, Literal: "float literal must end in 'f'", Pos: pos}
	}
	return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos syntax.Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]
	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
