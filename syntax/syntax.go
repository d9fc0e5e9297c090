package syntax

// ---------------------------------------------------------------------------
// NotWasm intermediate representation
//
// NotWasm is a low-level, explicitly typed language that maps closely onto
// a stack machine. Programs arrive here already resolved and typed; the
// backend only lowers them. The statement/expression/atom split matters:
// an Atom is side-effect free and value-producing, an Expr may allocate or
// mutate, and statements carry all control flow.
// ---------------------------------------------------------------------------

// Position is a source location, 1-based. The zero value means "unknown",
// which is what programs built in memory carry.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Id names a variable, parameter, global, or function.
type Id string

// Label names a break target. Labels introduced by goto elimination are
// prefixed with '$' so they can never collide with source labels.
type Label string

// Program is a whole compilation unit. Functions and Globals keep their
// declaration order; function order fixes the call-table and code-section
// indices. Data is the interned string blob, filled in by interning.
type Program struct {
	Functions []*Function
	Globals   []*Global
	Data      []byte
}

// FindFunction returns the function with the given name, or nil.
func (p *Program) FindFunction(name Id) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Function is a named top-level function. Locals are not pre-declared;
// variable statements introduce them during lowering.
type Function struct {
	Name   Id
	Params []Param
	Result *Type // nil means no result
	Body   *Block
	Pos    Position
}

// Type returns the function's type.
func (f *Function) Type() Type {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return Fn(params, f.Result)
}

// Param is a named function parameter.
type Param struct {
	Name Id
	Type Type
}

// Global is a module-level variable with a constant initializer.
type Global struct {
	Name    Id
	Type    Type
	Mutable bool
	Init    Atom
	Pos     Position
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	stmt()
}

// Empty is the no-op statement.
type Empty struct{}

// Block is an ordered statement sequence with its own scope.
type Block struct {
	Stmts []Stmt
}

// Var declares a fresh variable and binds it to the value of an expression.
type Var struct {
	Name Id
	Type Type
	Expr Expr
	Pos  Position
}

// Assign stores into an existing binding.
type Assign struct {
	Name Id
	Expr Expr
	Pos  Position
}

// If is a two-armed conditional. Both arms are always present; an absent
// source arm is an Empty statement.
type If struct {
	Cond Atom
	Then Stmt
	Else Stmt
	Pos  Position
}

// Loop repeats its body unconditionally. The only way out is a break to a
// label wrapping the loop.
type Loop struct {
	Body Stmt
	Pos  Position
}

// Labeled wraps a statement in a named break target.
type Labeled struct {
	Label Label
	Body  Stmt
	Pos   Position
}

// Break jumps to the end of the named enclosing Labeled statement.
type Break struct {
	Label Label
	Pos   Position
}

// ExprStmt evaluates an expression for its effect and discards any value
// it produces.
type ExprStmt struct {
	Expr Expr
	Pos  Position
}

// Return exits the function with the atom's value.
type Return struct {
	Value Atom
	Pos   Position
}

// Trap aborts execution.
type Trap struct {
	Pos Position
}

// Goto is an unstructured jump to a Labeled statement. It may only appear
// before goto elimination; the lowering stage rejects it.
type Goto struct {
	Label Label
	Pos   Position
}

// StmtPos returns a statement's source position, or the zero Position for
// statements that carry none.
func StmtPos(s Stmt) Position {
	switch s := s.(type) {
	case *Var:
		return s.Pos
	case *Assign:
		return s.Pos
	case *If:
		return s.Pos
	case *Loop:
		return s.Pos
	case *Labeled:
		return s.Pos
	case *Break:
		return s.Pos
	case *ExprStmt:
		return s.Pos
	case *Return:
		return s.Pos
	case *Trap:
		return s.Pos
	case *Goto:
		return s.Pos
	}
	return Position{}
}

func (*Empty) stmt()    {}
func (*Block) stmt()    {}
func (*Var) stmt()      {}
func (*Assign) stmt()   {}
func (*If) stmt()       {}
func (*Loop) stmt()     {}
func (*Labeled) stmt()  {}
func (*Break) stmt()    {}
func (*ExprStmt) stmt() {}
func (*Return) stmt()   {}
func (*Trap) stmt()     {}
func (*Goto) stmt()     {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. Expressions may allocate or
// have effects, so they appear only as the right-hand side of Var/Assign.
type Expr interface {
	expr()
}

// AtomExpr lifts an atom into expression position.
type AtomExpr struct {
	Atom Atom
}

// NewHT allocates an empty hashtable with the given element type.
type NewHT struct {
	Elem Type
}

// NewArray allocates an empty array with the given element type.
type NewArray struct {
	Elem Type
}

// HTSet stores Value under Field in a hashtable and yields the value.
type HTSet struct {
	HT    Atom
	Field Atom
	Value Atom
	Elem  Type
}

// Push appends Value to an array and yields the new length.
type Push struct {
	Array Atom
	Value Atom
	Elem  Type
}

// CallDirect calls a statically known function. Arguments must already be
// bound names; lowering pushes each by resolved slot.
type CallDirect struct {
	Fun  Id
	Args []Id
}

// CallIndirect calls through a function value held in a variable, checked
// against the given function type.
type CallIndirect struct {
	Fun  Id
	Type Type
	Args []Id
}

// ToString builds a runtime string from an interned literal.
type ToString struct {
	Value Atom
}

func (*AtomExpr) expr()     {}
func (*NewHT) expr()        {}
func (*NewArray) expr()     {}
func (*HTSet) expr()        {}
func (*Push) expr()         {}
func (*CallDirect) expr()   {}
func (*CallIndirect) expr() {}
func (*ToString) expr()     {}

// ---------------------------------------------------------------------------
// Atoms
// ---------------------------------------------------------------------------

// Atom is the interface for side-effect-free, value-producing leaves.
type Atom interface {
	atom()
}

// LitKind discriminates literal values.
type LitKind int

const (
	IntLit LitKind = iota
	FloatLit
	BoolLit
	StrLit      // an uninterned string; never survives past interning
	InternedLit // a byte offset into the program's data blob
)

// Lit is a literal. Interning rewrites StrLit nodes in place to
// InternedLit, keeping Str for diagnostics.
type Lit struct {
	Kind LitKind
	I32  int32
	F64  float64
	Bool bool
	Str  string
	Addr uint32
}

// Ident reads a bound name: a local, a global, or a function (which
// evaluates to its call-table index).
type Ident struct {
	Name Id
}

// HTGet reads Field from a hashtable.
type HTGet struct {
	HT    Atom
	Field Atom
	Elem  Type
}

// Index reads an array element.
type Index struct {
	Array Atom
	Index Atom
	Elem  Type
}

// StringLen yields the length of a runtime string.
type StringLen struct {
	Value Atom
}

// Binary applies a binary operator to two atoms.
type Binary struct {
	Op    BinaryOp
	Left  Atom
	Right Atom
}

// Unary applies a unary operator to one atom.
type Unary struct {
	Op      UnaryOp
	Operand Atom
}

func (*Lit) atom()       {}
func (*Ident) atom()     {}
func (*HTGet) atom()     {}
func (*Index) atom()     {}
func (*StringLen) atom() {}
func (*Binary) atom()    {}
func (*Unary) atom()     {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// BinaryOp is a concrete binary operator. Typed operators lower to a single
// machine instruction; the Any* operators lower to runtime fallback calls,
// because operand representations are only known at run time.
type BinaryOp int

const (
	I32Add BinaryOp = iota
	I32Sub
	I32Mul
	I32Eq
	I32Ne
	I32GT
	I32LT
	I32Ge
	I32Le
	I32And
	I32Or
	I32Shl
	F64Add
	F64Sub
	F64Mul
	F64Div
	F64Eq
	PtrEq
	AnyPlus
	AnyMinus
	AnyTimes
	AnyOver
	AnyStrictEq
)

var binaryOpNames = map[BinaryOp]string{
	I32Add:      "i32.add",
	I32Sub:      "i32.sub",
	I32Mul:      "i32.mul",
	I32Eq:       "i32.eq",
	I32Ne:       "i32.ne",
	I32GT:       "i32.gt",
	I32LT:       "i32.lt",
	I32Ge:       "i32.ge",
	I32Le:       "i32.le",
	I32And:      "i32.and",
	I32Or:       "i32.or",
	I32Shl:      "i32.shl",
	F64Add:      "f64.add",
	F64Sub:      "f64.sub",
	F64Mul:      "f64.mul",
	F64Div:      "f64.div",
	F64Eq:       "f64.eq",
	PtrEq:       "ptr.eq",
	AnyPlus:     "any.plus",
	AnyMinus:    "any.minus",
	AnyTimes:    "any.times",
	AnyOver:     "any.over",
	AnyStrictEq: "any.stricteq",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// UnaryOp is a concrete unary operator.
type UnaryOp int

const (
	F64Neg UnaryOp = iota
	I32Eqz
	AnyNeg
)

var unaryOpNames = map[UnaryOp]string{
	F64Neg: "f64.neg",
	I32Eqz: "i32.eqz",
	AnyNeg: "any.neg",
}

func (op UnaryOp) String() string { return unaryOpNames[op] }
