package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nwlang/notwasm/check"
	"github.com/nwlang/notwasm/syntax"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for NotWasm source text
// ---------------------------------------------------------------------------

// Parser parses NotWasm source text into a syntax.Program. Identifiers stay
// textual; binding and full type agreement are the check package's job. The
// parser does track declared types, because the typed operators of the
// program form (i32.add vs f64.add vs any.plus) must be chosen from the
// operand types at the point an operator is read.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	diag      *check.Diagnostics
	types     *typeScope
	whileSeq  int // numbers the labels while-loops desugar to
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		diag:  check.New(),
		types: newTypeScope(nil),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole source file.
func Parse(input string) (*syntax.Program, *check.Diagnostics) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.Diagnostics()
}

// Diagnostics returns everything recorded while parsing.
func (p *Parser) Diagnostics() *check.Diagnostics {
	return p.diag
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// expectIdent consumes an identifier and returns its text.
func (p *Parser) expectIdent() (string, bool) {
	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected identifier, got %s", p.curToken.Type)
		return "", false
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, true
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.diag.Errorf(p.curToken.Pos.Line, p.curToken.Pos.Column, format, args...)
}

// synchronize skips to the end of the broken statement.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenSemi) && !p.curTokenIs(TokenRBrace) {
		p.nextToken()
	}
	if p.curTokenIs(TokenSemi) {
		p.nextToken()
	}
}

// syncToFunction skips to the next top-level function.
func (p *Parser) syncToFunction() {
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenFunction) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses globals followed by functions until EOF.
func (p *Parser) ParseProgram() *syntax.Program {
	prog := &syntax.Program{}

	for p.curTokenIs(TokenVar) || p.curTokenIs(TokenConst) {
		if g := p.parseGlobal(); g != nil {
			prog.Globals = append(prog.Globals, g)
		}
	}

	for !p.curTokenIs(TokenEOF) {
		if !p.curTokenIs(TokenFunction) {
			p.errorf("expected 'function', got %s", p.curToken.Type)
			p.syncToFunction()
			continue
		}
		if f := p.parseFunction(); f != nil {
			prog.Functions = append(prog.Functions, f)
		}
	}

	return prog
}

// parseGlobal parses `var NAME: type = lit;` or `const NAME: type = lit;`.
func (p *Parser) parseGlobal() *syntax.Global {
	pos := p.curToken.Pos
	mutable := p.curTokenIs(TokenVar)
	p.nextToken() // consume var or const

	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenColon) {
		p.synchronize()
		return nil
	}
	ty, ok := p.parseType()
	if !ok {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenAssign) {
		p.synchronize()
		return nil
	}
	init := p.parseLiteral()
	if init == nil {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	p.types.bind(syntax.Id(name), ty)
	return &syntax.Global{Name: syntax.Id(name), Type: ty, Mutable: mutable, Init: init, Pos: pos}
}

// parseFunction parses `function name(p: type, ...): type { ... }`. The
// result type is optional.
func (p *Parser) parseFunction() *syntax.Function {
	pos := p.curToken.Pos
	p.nextToken() // consume function

	name, ok := p.expectIdent()
	if !ok {
		p.syncToFunction()
		return nil
	}
	if !p.expect(TokenLParen) {
		p.syncToFunction()
		return nil
	}

	var params []syntax.Param
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if len(params) > 0 && !p.expect(TokenComma) {
			p.syncToFunction()
			return nil
		}
		pname, ok := p.expectIdent()
		if !ok {
			p.syncToFunction()
			return nil
		}
		if !p.expect(TokenColon) {
			p.syncToFunction()
			return nil
		}
		pty, ok := p.parseType()
		if !ok {
			p.syncToFunction()
			return nil
		}
		params = append(params, syntax.Param{Name: syntax.Id(pname), Type: pty})
	}
	if !p.expect(TokenRParen) {
		p.syncToFunction()
		return nil
	}

	var result *syntax.Type
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		rt, ok := p.parseType()
		if !ok {
			p.syncToFunction()
			return nil
		}
		result = &rt
	}

	f := &syntax.Function{Name: syntax.Id(name), Params: params, Result: result, Pos: pos}
	// Bound before the body so recursive calls resolve.
	p.types.bind(f.Name, f.Type())

	outer := p.types
	p.types = newTypeScope(outer)
	for _, prm := range params {
		p.types.bind(prm.Name, prm.Type)
	}
	f.Body = p.parseBlock()
	p.types = outer

	if f.Body == nil {
		return nil
	}
	return f
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseBlock parses `{ stmt* }` with its own declaration scope.
func (p *Parser) parseBlock() *syntax.Block {
	if !p.expect(TokenLBrace) {
		return nil
	}

	outer := p.types
	p.types = newTypeScope(outer)
	defer func() { p.types = outer }()

	var stmts []syntax.Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(TokenRBrace)
	return syntax.NewBlock(stmts...)
}

func (p *Parser) parseStatement() syntax.Stmt {
	switch p.curToken.Type {
	case TokenVar:
		return p.parseVar()
	case TokenConst:
		p.errorf("const declarations are only allowed at the top of the file")
		p.synchronize()
		return nil
	case TokenIf:
		return p.parseIf()
	case TokenLoop:
		return p.parseLoop()
	case TokenWhile:
		return p.parseWhile()
	case TokenBreak:
		return p.parseBreak()
	case TokenReturn:
		return p.parseReturn()
	case TokenGoto:
		return p.parseGoto()
	case TokenTrap:
		return p.parseTrap()
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	case TokenIdent:
		if p.peekTokenIs(TokenAssign) {
			return p.parseAssign()
		}
		if p.peekTokenIs(TokenColon) {
			return p.parseLabeled()
		}
		return p.parseExprStatement()
	case TokenError:
		p.errorf("%s", p.curToken.Literal)
		p.nextToken()
		return nil
	default:
		return p.parseExprStatement()
	}
}

// parseVar parses `var x: T = expr;`.
func (p *Parser) parseVar() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume var

	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenColon) {
		p.synchronize()
		return nil
	}
	ty, ok := p.parseType()
	if !ok {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenAssign) {
		p.synchronize()
		return nil
	}
	e := p.parseExpr()
	if e == nil {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	p.types.bind(syntax.Id(name), ty)
	s := syntax.NewVar(syntax.Id(name), ty, e)
	s.Pos = pos
	return s
}

// parseAssign parses `x = expr;`.
func (p *Parser) parseAssign() syntax.Stmt {
	pos := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken() // consume identifier
	p.nextToken() // consume =

	e := p.parseExpr()
	if e == nil {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	s := syntax.NewAssign(syntax.Id(name), e)
	s.Pos = pos
	return s
}

// parseLabeled parses `name: { ... }`.
func (p *Parser) parseLabeled() syntax.Stmt {
	pos := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken() // consume identifier
	p.nextToken() // consume :

	if !p.curTokenIs(TokenLBrace) {
		p.errorf("expected '{' after label '%s'", name)
		p.synchronize()
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}

	s := syntax.NewLabeled(syntax.Label(name), body)
	s.Pos = pos
	return s
}

// parseIf parses `if (atom) { ... }` with an optional else block or else-if
// chain.
func (p *Parser) parseIf() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume if

	if !p.expect(TokenLParen) {
		p.synchronize()
		return nil
	}
	cond, _, _ := p.parseAtom()
	if cond == nil {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenRParen) {
		p.synchronize()
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}

	var els syntax.Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			els = p.parseIf()
		} else {
			b := p.parseBlock()
			if b == nil {
				return nil
			}
			els = b
		}
	}

	s := syntax.NewIf(cond, then, els)
	s.Pos = pos
	return s
}

// parseLoop parses `loop { ... }`.
func (p *Parser) parseLoop() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume loop

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	s := syntax.NewLoop(body)
	s.Pos = pos
	return s
}

// parseWhile parses `while (atom) { ... }`, which is sugar: the loop gets
// wrapped in a fresh label, and the body in a conditional that breaks to it
// when the condition fails.
func (p *Parser) parseWhile() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume while

	if !p.expect(TokenLParen) {
		p.synchronize()
		return nil
	}
	cond, _, _ := p.parseAtom()
	if cond == nil {
		p.synchronize()
		return nil
	}
	if !p.expect(TokenRParen) {
		p.synchronize()
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}

	// '$' keeps the label out of the source namespace.
	label := syntax.Label(fmt.Sprintf("$while.%d", p.whileSeq))
	p.whileSeq++

	guarded := syntax.NewIf(cond, body, syntax.NewBreak(label))
	guarded.Pos = pos
	s := syntax.NewLabeled(label, syntax.NewLoop(syntax.NewBlock(guarded)))
	s.Pos = pos
	return s
}

// parseBreak parses `break name;`.
func (p *Parser) parseBreak() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume break

	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	s := syntax.NewBreak(syntax.Label(name))
	s.Pos = pos
	return s
}

// parseReturn parses `return atom;`.
func (p *Parser) parseReturn() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume return

	a, _, _ := p.parseAtom()
	if a == nil {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	s := syntax.NewReturn(a)
	s.Pos = pos
	return s
}

// parseGoto parses `goto name;`. The structurer turns these into breaks.
func (p *Parser) parseGoto() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume goto

	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return nil
	}
	p.expect(TokenSemi)

	s := syntax.NewGoto(syntax.Label(name))
	s.Pos = pos
	return s
}

// parseTrap parses `trap;`.
func (p *Parser) parseTrap() syntax.Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume trap
	p.expect(TokenSemi)
	return &syntax.Trap{Pos: pos}
}

// parseExprStatement parses a bare expression statement, plus the hashtable
// write form `h["k"]: T = atom;` that starts out looking like a read.
func (p *Parser) parseExprStatement() syntax.Stmt {
	pos := p.curToken.Pos
	e := p.parseExpr()
	if e == nil {
		p.synchronize()
		return nil
	}

	if p.curTokenIs(TokenAssign) {
		e = p.finishBracketAssign(e)
		if e == nil {
			return nil
		}
	}

	p.expect(TokenSemi)
	s := syntax.Perform(e)
	s.Pos = pos
	return s
}

// finishBracketAssign turns a parsed hashtable read followed by '=' into the
// write form.
func (p *Parser) finishBracketAssign(e syntax.Expr) syntax.Expr {
	ae, ok := e.(*syntax.AtomExpr)
	if !ok {
		p.errorf("cannot assign into this expression")
		p.synchronize()
		return nil
	}

	switch target := ae.Atom.(type) {
	case *syntax.HTGet:
		p.nextToken() // consume =
		val, _, _ := p.parseAtom()
		if val == nil {
			p.synchronize()
			return nil
		}
		return &syntax.HTSet{HT: target.HT, Field: target.Field, Value: val, Elem: target.Elem}
	case *syntax.Index:
		p.errorf("arrays are append-only; use push(a, v)")
	default:
		p.errorf("cannot assign into this expression")
	}
	p.synchronize()
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// parseExpr parses the right-hand side of a binding or a bare expression
// statement: constructors, calls, the builtin forms, or an atom. Calls are
// always built as direct calls; lowering dispatches a call through a
// function-typed variable to the table.
func (p *Parser) parseExpr() syntax.Expr {
	switch p.curToken.Type {
	case TokenHT:
		return p.parseNewHT()
	case TokenArray:
		return p.parseNewArray()
	case TokenIdent:
		if p.peekTokenIs(TokenLParen) {
			switch p.curToken.Literal {
			case "string":
				return p.parseToString()
			case "push":
				return p.parsePush()
			case "len":
				// len(s) is an atom; handled below
			default:
				return p.parseCall()
			}
		}
	}

	a, _, _ := p.parseAtom()
	if a == nil {
		return nil
	}
	return &syntax.AtomExpr{Atom: a}
}

// parseNewHT parses `HT(T){}`.
func (p *Parser) parseNewHT() syntax.Expr {
	p.nextToken() // consume HT
	if !p.expect(TokenLParen) {
		return nil
	}
	elem, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.expect(TokenRParen) || !p.expect(TokenLBrace) || !p.expect(TokenRBrace) {
		return nil
	}
	return &syntax.NewHT{Elem: elem}
}

// parseNewArray parses `Array(T)[]`.
func (p *Parser) parseNewArray() syntax.Expr {
	p.nextToken() // consume Array
	if !p.expect(TokenLParen) {
		return nil
	}
	elem, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.expect(TokenRParen) || !p.expect(TokenLBracket) || !p.expect(TokenRBracket) {
		return nil
	}
	return &syntax.NewArray{Elem: elem}
}

// parseToString parses `string(atom)`.
func (p *Parser) parseToString() syntax.Expr {
	p.nextToken() // consume string
	p.nextToken() // consume (
	a, _, _ := p.parseAtom()
	if a == nil {
		return nil
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	return &syntax.ToString{Value: a}
}

// parsePush parses `push(a, v): T`.
func (p *Parser) parsePush() syntax.Expr {
	p.nextToken() // consume push
	p.nextToken() // consume (
	arr, _, _ := p.parseAtom()
	if arr == nil {
		return nil
	}
	if !p.expect(TokenComma) {
		return nil
	}
	val, _, _ := p.parseAtom()
	if val == nil {
		return nil
	}
	if !p.expect(TokenRParen) || !p.expect(TokenColon) {
		return nil
	}
	elem, ok := p.parseType()
	if !ok {
		return nil
	}
	return &syntax.Push{Array: arr, Value: val, Elem: elem}
}

// parseCall parses `f(a, b)`. Arguments must be identifiers: operands are
// named before they flow into a call.
func (p *Parser) parseCall() syntax.Expr {
	fun := p.curToken.Literal
	p.nextToken() // consume identifier
	p.nextToken() // consume (

	var args []syntax.Id
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if len(args) > 0 && !p.expect(TokenComma) {
			return nil
		}
		if !p.curTokenIs(TokenIdent) {
			p.errorf("call arguments must be identifiers, got %s", p.curToken.Type)
			return nil
		}
		args = append(args, syntax.Id(p.curToken.Literal))
		p.nextToken()
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	return syntax.NewCall(syntax.Id(fun), args...)
}

// ---------------------------------------------------------------------------
// Atoms
// ---------------------------------------------------------------------------

// parseAtom parses a chain of atom items joined by binary operators, left
// associative on a single level, as in `(a + b) > c` written without the
// parens. The reported type drives operator selection; a nil atom means an
// error was recorded.
func (p *Parser) parseAtom() (syntax.Atom, syntax.Type, bool) {
	left, lt, lok := p.parseAtomItem()
	if left == nil {
		return nil, syntax.Type{}, false
	}

	for p.curTokenIs(TokenOp) {
		spelling := p.curToken.Literal
		p.nextToken()

		right, rt, rok := p.parseAtomItem()
		if right == nil {
			return nil, syntax.Type{}, false
		}
		if !lok || !rok {
			p.errorf("cannot type operator '%s': operand type unknown here", spelling)
			return nil, syntax.Type{}, false
		}
		op, resType, ok := operatorFor(spelling, lt, rt)
		if !ok {
			p.errorf("operator '%s' is not defined for %s and %s", spelling, lt, rt)
			return nil, syntax.Type{}, false
		}
		left = syntax.NewBinary(op, left, right)
		lt = resType
	}

	return left, lt, lok
}

// parseAtomItem parses one literal, identifier, len() form, or
// parenthesized atom, plus any bracket reads after it.
func (p *Parser) parseAtomItem() (syntax.Atom, syntax.Type, bool) {
	switch p.curToken.Type {
	case TokenInt:
		n, err := strconv.ParseInt(p.curToken.Literal, 10, 32)
		if err != nil {
			p.errorf("integer literal out of i32 range: %s", p.curToken.Literal)
			p.nextToken()
			return nil, syntax.Type{}, false
		}
		p.nextToken()
		return syntax.Int(int32(n)), syntax.I32, true

	case TokenFloat:
		text := strings.TrimSuffix(p.curToken.Literal, "f")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.errorf("bad float literal: %s", p.curToken.Literal)
			p.nextToken()
			return nil, syntax.Type{}, false
		}
		p.nextToken()
		return syntax.Float(v), syntax.F64, true

	case TokenString:
		s := p.curToken.Literal
		p.nextToken()
		return syntax.String(s), syntax.Str, true

	case TokenTrue:
		p.nextToken()
		return syntax.BoolOf(true), syntax.Bool, true

	case TokenFalse:
		p.nextToken()
		return syntax.BoolOf(false), syntax.Bool, true

	case TokenLParen:
		p.nextToken()
		a, t, ok := p.parseAtom()
		if a == nil {
			return nil, syntax.Type{}, false
		}
		if !p.expect(TokenRParen) {
			return nil, syntax.Type{}, false
		}
		return p.parsePostfix(a, t, ok)

	case TokenIdent:
		if p.curToken.Literal == "len" && p.peekTokenIs(TokenLParen) {
			p.nextToken() // consume len
			p.nextToken() // consume (
			a, _, _ := p.parseAtom()
			if a == nil {
				return nil, syntax.Type{}, false
			}
			if !p.expect(TokenRParen) {
				return nil, syntax.Type{}, false
			}
			return &syntax.StringLen{Value: a}, syntax.I32, true
		}
		name := syntax.Id(p.curToken.Literal)
		p.nextToken()
		t, known := p.types.lookup(name)
		return p.parsePostfix(syntax.Ref(name), t, known)

	case TokenError:
		p.errorf("%s", p.curToken.Literal)
		p.nextToken()
		return nil, syntax.Type{}, false

	default:
		p.errorf("expected an expression, got %s", p.curToken.Type)
		return nil, syntax.Type{}, false
	}
}

// parsePostfix parses bracket reads after an atom: `h["k"]: T` on a
// hashtable, `a[i]: T` on an array. The container's declared type picks the
// form; the ascription gives the element type.
func (p *Parser) parsePostfix(a syntax.Atom, t syntax.Type, known bool) (syntax.Atom, syntax.Type, bool) {
	for p.curTokenIs(TokenLBracket) {
		p.nextToken()
		idx, _, _ := p.parseAtom()
		if idx == nil {
			return nil, syntax.Type{}, false
		}
		if !p.expect(TokenRBracket) || !p.expect(TokenColon) {
			return nil, syntax.Type{}, false
		}
		elem, ok := p.parseType()
		if !ok {
			return nil, syntax.Type{}, false
		}
		if !known {
			p.errorf("cannot index a value whose type is not known here")
			return nil, syntax.Type{}, false
		}
		switch t.Kind {
		case syntax.KindHT:
			a = &syntax.HTGet{HT: a, Field: idx, Elem: elem}
		case syntax.KindArray:
			a = &syntax.Index{Array: a, Index: idx, Elem: elem}
		default:
			p.errorf("cannot index a value of type %s", t)
			return nil, syntax.Type{}, false
		}
		t = elem
		known = true
	}
	return a, t, known
}

// parseLiteral parses a single literal, for global initializers.
func (p *Parser) parseLiteral() *syntax.Lit {
	switch p.curToken.Type {
	case TokenInt:
		n, err := strconv.ParseInt(p.curToken.Literal, 10, 32)
		if err != nil {
			p.errorf("integer literal out of i32 range: %s", p.curToken.Literal)
			p.nextToken()
			return nil
		}
		p.nextToken()
		return syntax.Int(int32(n))
	case TokenFloat:
		text := strings.TrimSuffix(p.curToken.Literal, "f")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.errorf("bad float literal: %s", p.curToken.Literal)
			p.nextToken()
			return nil
		}
		p.nextToken()
		return syntax.Float(v)
	case TokenString:
		s := p.curToken.Literal
		p.nextToken()
		return syntax.String(s)
	case TokenTrue:
		p.nextToken()
		return syntax.BoolOf(true)
	case TokenFalse:
		p.nextToken()
		return syntax.BoolOf(false)
	default:
		p.errorf("global initializer must be a literal, got %s", p.curToken.Type)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// parseType parses `i32`, `f64`, `bool`, `str`, `any`, `HT(T)`, `Array(T)`,
// or a function type `(T, ...) -> T`.
func (p *Parser) parseType() (syntax.Type, bool) {
	switch p.curToken.Type {
	case TokenI32:
		p.nextToken()
		return syntax.I32, true
	case TokenF64:
		p.nextToken()
		return syntax.F64, true
	case TokenBool:
		p.nextToken()
		return syntax.Bool, true
	case TokenStr:
		p.nextToken()
		return syntax.Str, true
	case TokenAny:
		p.nextToken()
		return syntax.Any, true

	case TokenHT:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return syntax.Type{}, false
		}
		elem, ok := p.parseType()
		if !ok {
			return syntax.Type{}, false
		}
		if !p.expect(TokenRParen) {
			return syntax.Type{}, false
		}
		return syntax.HT(elem), true

	case TokenArray:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return syntax.Type{}, false
		}
		elem, ok := p.parseType()
		if !ok {
			return syntax.Type{}, false
		}
		if !p.expect(TokenRParen) {
			return syntax.Type{}, false
		}
		return syntax.Array(elem), true

	case TokenLParen:
		p.nextToken()
		var params []syntax.Type
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			if len(params) > 0 && !p.expect(TokenComma) {
				return syntax.Type{}, false
			}
			t, ok := p.parseType()
			if !ok {
				return syntax.Type{}, false
			}
			params = append(params, t)
		}
		if !p.expect(TokenRParen) || !p.expect(TokenArrow) {
			return syntax.Type{}, false
		}
		res, ok := p.parseType()
		if !ok {
			return syntax.Type{}, false
		}
		return syntax.Fn(params, &res), true

	default:
		p.errorf("expected a type, got %s", p.curToken.Type)
		return syntax.Type{}, false
	}
}

// ---------------------------------------------------------------------------
// Operator selection
// ---------------------------------------------------------------------------

// operatorFor picks the typed operator for a spelled operator and its
// operand types, and reports the result type. Identity comparison `==` on
// reference types compares addresses.
func operatorFor(spelling string, l, r syntax.Type) (syntax.BinaryOp, syntax.Type, bool) {
	if !l.Equal(r) {
		return 0, syntax.Type{}, false
	}

	switch l.Kind {
	case syntax.KindI32:
		switch spelling {
		case "+":
			return syntax.I32Add, syntax.I32, true
		case "-":
			return syntax.I32Sub, syntax.I32, true
		case "*":
			return syntax.I32Mul, syntax.I32, true
		case "==":
			return syntax.I32Eq, syntax.Bool, true
		case "!=":
			return syntax.I32Ne, syntax.Bool, true
		case ">":
			return syntax.I32GT, syntax.Bool, true
		case "<":
			return syntax.I32LT, syntax.Bool, true
		case ">=":
			return syntax.I32Ge, syntax.Bool, true
		case "<=":
			return syntax.I32Le, syntax.Bool, true
		case "&":
			return syntax.I32And, syntax.I32, true
		case "|":
			return syntax.I32Or, syntax.I32, true
		case "<<":
			return syntax.I32Shl, syntax.I32, true
		}

	case syntax.KindF64:
		switch spelling {
		case "+":
			return syntax.F64Add, syntax.F64, true
		case "-":
			return syntax.F64Sub, syntax.F64, true
		case "*":
			return syntax.F64Mul, syntax.F64, true
		case "/":
			return syntax.F64Div, syntax.F64, true
		case "==":
			return syntax.F64Eq, syntax.Bool, true
		}

	case syntax.KindAny:
		switch spelling {
		case "+":
			return syntax.AnyPlus, syntax.Any, true
		case "-":
			return syntax.AnyMinus, syntax.Any, true
		case "*":
			return syntax.AnyTimes, syntax.Any, true
		case "/":
			return syntax.AnyOver, syntax.F64, true
		case "==":
			return syntax.AnyStrictEq, syntax.Bool, true
		}

	case syntax.KindStr, syntax.KindHT, syntax.KindArray, syntax.KindFn:
		if spelling == "==" {
			return syntax.PtrEq, syntax.Bool, true
		}
	}

	return 0, syntax.Type{}, false
}

// ---------------------------------------------------------------------------
// Declared-type tracking
// ---------------------------------------------------------------------------

// typeScope tracks declared types while parsing. It mirrors the checker's
// scope but carries only types; the checker remains the authority on
// binding and agreement.
type typeScope struct {
	parent *typeScope
	names  map[syntax.Id]syntax.Type
}

func newTypeScope(parent *typeScope) *typeScope {
	return &typeScope{parent: parent, names: make(map[syntax.Id]syntax.Type)}
}

func (s *typeScope) bind(name syntax.Id, t syntax.Type) {
	s.names[name] = t
}

func (s *typeScope) lookup(name syntax.Id) (syntax.Type, bool) {
	for f := s; f != nil; f = f.parent {
		if t, ok := f.names[name]; ok {
			return t, true
		}
	}
	return syntax.Type{}, false
}
