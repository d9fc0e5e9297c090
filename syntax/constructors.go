package syntax

// ---------------------------------------------------------------------------
// Constructors: shorthand for building IR in memory, mostly used by tests
// and by upstream phases that synthesize code.
// ---------------------------------------------------------------------------

// Int returns an i32 literal.
func Int(n int32) *Lit {
	return &Lit{Kind: IntLit, I32: n}
}

// Float returns an f64 literal.
func Float(v float64) *Lit {
	return &Lit{Kind: FloatLit, F64: v}
}

// BoolOf returns a bool literal.
func BoolOf(b bool) *Lit {
	return &Lit{Kind: BoolLit, Bool: b}
}

// String returns an uninterned string literal.
func String(s string) *Lit {
	return &Lit{Kind: StrLit, Str: s}
}

// Ref returns an identifier read.
func Ref(name Id) *Ident {
	return &Ident{Name: name}
}

// NewBinary returns a binary operator application.
func NewBinary(op BinaryOp, left, right Atom) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// NewUnary returns a unary operator application.
func NewUnary(op UnaryOp, operand Atom) *Unary {
	return &Unary{Op: op, Operand: operand}
}

// AtomE lifts an atom into expression position.
func AtomE(a Atom) *AtomExpr {
	return &AtomExpr{Atom: a}
}

// NewBlock returns a block of the given statements.
func NewBlock(stmts ...Stmt) *Block {
	return &Block{Stmts: stmts}
}

// NewVar returns a variable declaration.
func NewVar(name Id, ty Type, e Expr) *Var {
	return &Var{Name: name, Type: ty, Expr: e}
}

// VarAtom returns a variable declaration initialized from an atom.
func VarAtom(name Id, ty Type, a Atom) *Var {
	return &Var{Name: name, Type: ty, Expr: AtomE(a)}
}

// NewAssign returns an assignment to an existing binding.
func NewAssign(name Id, e Expr) *Assign {
	return &Assign{Name: name, Expr: e}
}

// AssignAtom returns an assignment from an atom.
func AssignAtom(name Id, a Atom) *Assign {
	return &Assign{Name: name, Expr: AtomE(a)}
}

// Perform returns a statement evaluating an expression for its effect.
func Perform(e Expr) *ExprStmt {
	return &ExprStmt{Expr: e}
}

// NewIf returns a conditional; nil arms become Empty.
func NewIf(cond Atom, then, els Stmt) *If {
	if then == nil {
		then = &Empty{}
	}
	if els == nil {
		els = &Empty{}
	}
	return &If{Cond: cond, Then: then, Else: els}
}

// NewLoop returns an unconditional loop.
func NewLoop(body Stmt) *Loop {
	return &Loop{Body: body}
}

// NewLabeled wraps a statement in a named break target.
func NewLabeled(label Label, body Stmt) *Labeled {
	return &Labeled{Label: label, Body: body}
}

// NewBreak returns a break to the named label.
func NewBreak(label Label) *Break {
	return &Break{Label: label}
}

// NewReturn returns a return of the atom's value.
func NewReturn(value Atom) *Return {
	return &Return{Value: value}
}

// NewGoto returns an unstructured jump, for programs that still need goto
// elimination.
func NewGoto(label Label) *Goto {
	return &Goto{Label: label}
}

// NewCall returns a direct call.
func NewCall(fun Id, args ...Id) *CallDirect {
	return &CallDirect{Fun: fun, Args: args}
}

// NewCallIndirect returns an indirect call through fun, checked against ty.
func NewCallIndirect(fun Id, ty Type, args ...Id) *CallIndirect {
	return &CallIndirect{Fun: fun, Type: ty, Args: args}
}

// NewFunction returns a function definition.
func NewFunction(name Id, params []Param, result *Type, body *Block) *Function {
	return &Function{Name: name, Params: params, Result: result, Body: body}
}

// NewProgram returns a program over the given functions.
func NewProgram(functions ...*Function) *Program {
	return &Program{Functions: functions}
}
