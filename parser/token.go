package parser

import (
	"fmt"

	"github.com/nwlang/notwasm/syntax"
)

// ---------------------------------------------------------------------------
// Token types for the NotWasm lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt    // 5, -3
	TokenFloat  // 1f, 1.5f
	TokenString // "hello"
	TokenIdent  // foo, main

	// Keywords
	TokenFunction
	TokenVar
	TokenConst
	TokenIf
	TokenElse
	TokenLoop
	TokenWhile
	TokenBreak
	TokenReturn
	TokenGoto
	TokenTrap
	TokenTrue
	TokenFalse

	// Type keywords
	TokenI32
	TokenF64
	TokenBool
	TokenStr
	TokenAny
	TokenHT
	TokenArray

	// Operators and delimiters
	TokenOp       // + - * / == != > < >= <= & | <<
	TokenAssign   // =
	TokenArrow    // ->
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenSemi     // ;
	TokenColon    // :
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenError:    "ERROR",
	TokenInt:      "INT",
	TokenFloat:    "FLOAT",
	TokenString:   "STRING",
	TokenIdent:    "IDENTIFIER",
	TokenFunction: "function",
	TokenVar:      "var",
	TokenConst:    "const",
	TokenIf:       "if",
	TokenElse:     "else",
	TokenLoop:     "loop",
	TokenWhile:    "while",
	TokenBreak:    "break",
	TokenReturn:   "return",
	TokenGoto:     "goto",
	TokenTrap:     "trap",
	TokenTrue:     "true",
	TokenFalse:    "false",
	TokenI32:      "i32",
	TokenF64:      "f64",
	TokenBool:     "bool",
	TokenStr:      "str",
	TokenAny:      "any",
	TokenHT:       "HT",
	TokenArray:    "Array",
	TokenOp:       "OPERATOR",
	TokenAssign:   "=",
	TokenArrow:    "->",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenSemi:     ";",
	TokenColon:    ":",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string          // the raw text
	Pos     syntax.Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"function": TokenFunction,
	"var":      TokenVar,
	"const":    TokenConst,
	"if":       TokenIf,
	"else":     TokenElse,
	"loop":     TokenLoop,
	"while":    TokenWhile,
	"break":    TokenBreak,
	"return":   TokenReturn,
	"goto":     TokenGoto,
	"trap":     TokenTrap,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"i32":      TokenI32,
	"f64":      TokenF64,
	"bool":     TokenBool,
	"str":      TokenStr,
	"any":      TokenAny,
	"HT":       TokenHT,
	"Array":    TokenArray,
}
