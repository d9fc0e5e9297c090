// Package check validates a program before it reaches the compiler backend.
// The backend treats an ill-formed program as an internal fault and stops at
// the first one; this pass is the upstream guard that walks the whole
// program and reports every scope and type defect as a diagnostic instead.
package check

import (
	"github.com/nwlang/notwasm/syntax"
)

// Program checks p and returns everything found. An empty, error-free
// result means the backend's closed-program assumptions hold.
func Program(p *syntax.Program) *Diagnostics {
	c := &checker{diag: New(), top: newScope(nil)}
	c.registerTop(p)
	c.checkGlobals(p)
	for _, f := range p.Functions {
		c.function(f)
	}
	return c.diag
}

type checker struct {
	diag *Diagnostics
	top  *scope // globals and function names

	// State for the function being checked.
	fname   syntax.Id
	result  *syntax.Type
	labels  []syntax.Label // visible break targets, innermost last
	targets map[syntax.Label]int
	at      syntax.Position // position of the statement being checked
}

func (c *checker) errorHere(format string, args ...interface{}) {
	c.diag.Errorf(c.at.Line, c.at.Column, format, args...)
}

// registerTop binds every global and function name before any body is
// checked, so forward references resolve.
func (c *checker) registerTop(p *syntax.Program) {
	seen := make(map[syntax.Id]bool)
	for _, g := range p.Globals {
		if seen[g.Name] {
			c.diag.Errorf(g.Pos.Line, g.Pos.Column, "duplicate top-level name '%s'", g.Name)
			continue
		}
		seen[g.Name] = true
		c.top.define(g.Name, symbol{ty: g.Type, kind: symGlobal, mut: g.Mutable})
	}

	mains := 0
	for _, f := range p.Functions {
		if seen[f.Name] {
			c.diag.Errorf(f.Pos.Line, f.Pos.Column, "duplicate top-level name '%s'", f.Name)
			continue
		}
		seen[f.Name] = true
		c.top.define(f.Name, symbol{ty: f.Type(), kind: symFunc})
		if string(f.Name) == "main" {
			mains++
			if len(f.Params) > 0 {
				c.diag.Errorf(f.Pos.Line, f.Pos.Column, "main must not take parameters")
			}
		}
	}
	if mains == 0 {
		c.diag.Errorf(0, 0, "program has no main function")
	}
}

// checkGlobals validates initializers: they must be scalar literals (the
// binary format has no constant expressions beyond that) agreeing with the
// declared type.
func (c *checker) checkGlobals(p *syntax.Program) {
	for _, g := range p.Globals {
		lit, ok := g.Init.(*syntax.Lit)
		if !ok {
			c.diag.Errorf(g.Pos.Line, g.Pos.Column,
				"global '%s' initializer must be a scalar literal (i32, f64, or bool)", g.Name)
			continue
		}
		var t syntax.Type
		switch lit.Kind {
		case syntax.IntLit:
			t = syntax.I32
		case syntax.FloatLit:
			t = syntax.F64
		case syntax.BoolLit:
			t = syntax.Bool
		default:
			c.diag.Errorf(g.Pos.Line, g.Pos.Column,
				"global '%s' initializer must be a scalar literal (i32, f64, or bool)", g.Name)
			continue
		}
		if !t.Equal(g.Type) {
			c.diag.Errorf(g.Pos.Line, g.Pos.Column,
				"global '%s' declared %s but initialized with %s", g.Name, g.Type, t)
		}
	}
}

func (c *checker) function(f *syntax.Function) {
	c.fname = f.Name
	c.result = f.Result
	c.labels = nil
	c.targets = make(map[syntax.Label]int)
	collectLabels(f.Body, c.targets)

	sc := newScope(c.top)
	params := make(map[syntax.Id]bool)
	for _, p := range f.Params {
		if params[p.Name] {
			c.diag.Errorf(f.Pos.Line, f.Pos.Column,
				"function '%s' has duplicate parameter '%s'", f.Name, p.Name)
		}
		params[p.Name] = true
		sc.define(p.Name, symbol{ty: p.Type, kind: symVar, mut: true})
	}

	c.at = f.Pos
	c.block(f.Body, sc)

	if f.Result != nil && !terminates(f.Body) {
		c.diag.Warningf(f.Pos.Line, f.Pos.Column,
			"function '%s' can reach the end of its body without returning", f.Name)
	}
}

// block checks a statement sequence in a fresh frame. Declarations become
// visible to the statements after them and die with the frame.
func (c *checker) block(b *syntax.Block, sc *scope) {
	inner := newScope(sc)
	warned := false
	for i, st := range b.Stmts {
		c.stmt(st, inner)
		if !warned && i < len(b.Stmts)-1 && terminates(st) {
			pos := syntax.StmtPos(b.Stmts[i+1])
			c.diag.Warningf(pos.Line, pos.Column, "unreachable code")
			warned = true
		}
	}
}

func (c *checker) stmt(s syntax.Stmt, sc *scope) {
	if pos := syntax.StmtPos(s); pos.Line != 0 {
		c.at = pos
	}
	switch s := s.(type) {
	case *syntax.Empty:

	case *syntax.Block:
		c.block(s, sc)

	case *syntax.Var:
		t, ok := c.expr(s.Expr, sc)
		if ok && t == nil {
			c.errorHere("cannot bind '%s' to a call that produces no value", s.Name)
		}
		if t != nil && !t.Equal(s.Type) {
			c.errorHere("type mismatch: cannot bind %s value to %s '%s'", t, s.Type, s.Name)
		}
		sc.define(s.Name, symbol{ty: s.Type, kind: symVar, mut: true})

	case *syntax.Assign:
		t, ok := c.expr(s.Expr, sc)
		if ok && t == nil {
			c.errorHere("cannot assign a call that produces no value to '%s'", s.Name)
		}
		sym, bound := sc.resolve(s.Name)
		if !bound {
			c.errorHere("assignment to undeclared name '%s'", s.Name)
			return
		}
		switch {
		case sym.kind == symFunc:
			c.errorHere("cannot assign to function '%s'", s.Name)
		case sym.kind == symGlobal && !sym.mut:
			c.errorHere("cannot assign to immutable global '%s'", s.Name)
		case t != nil && !t.Equal(sym.ty):
			c.errorHere("type mismatch: cannot assign %s to %s '%s'", t, sym.ty, s.Name)
		}

	case *syntax.If:
		if t := c.atom(s.Cond, sc); t != nil && t.Kind != syntax.KindBool {
			c.errorHere("condition must be bool, got %s", t)
		}
		c.stmt(s.Then, newScope(sc))
		c.stmt(s.Else, newScope(sc))

	case *syntax.Loop:
		c.stmt(s.Body, newScope(sc))

	case *syntax.Labeled:
		c.labels = append(c.labels, s.Label)
		c.stmt(s.Body, newScope(sc))
		c.labels = c.labels[:len(c.labels)-1]

	case *syntax.Break:
		for i := len(c.labels) - 1; i >= 0; i-- {
			if c.labels[i] == s.Label {
				return
			}
		}
		c.errorHere("break to label '%s', which does not enclose this statement", s.Label)

	case *syntax.ExprStmt:
		c.expr(s.Expr, sc)

	case *syntax.Return:
		t := c.atom(s.Value, sc)
		switch {
		case c.result == nil:
			c.errorHere("function '%s' has no result but returns a value", c.fname)
		case t != nil && !t.Equal(*c.result):
			c.errorHere("return type mismatch: function '%s' returns %s, got %s", c.fname, *c.result, t)
		}

	case *syntax.Trap:

	case *syntax.Goto:
		switch n := c.targets[s.Label]; {
		case n == 0:
			c.errorHere("goto target '%s' does not exist in function '%s'", s.Label, c.fname)
		case n > 1:
			c.errorHere("goto '%s' is ambiguous: the label is defined %d times", s.Label, n)
		}
	}
}

// expr types an expression. The bool is false when a diagnostic was already
// recorded; (nil, true) means a well-formed call that produces no value.
func (c *checker) expr(e syntax.Expr, sc *scope) (*syntax.Type, bool) {
	switch e := e.(type) {
	case *syntax.AtomExpr:
		t := c.atom(e.Atom, sc)
		return t, t != nil

	case *syntax.NewHT:
		return typ(syntax.HT(e.Elem)), true

	case *syntax.NewArray:
		return typ(syntax.Array(e.Elem)), true

	case *syntax.HTSet:
		c.container(e.HT, syntax.HT(e.Elem), "hashtable write", sc)
		if t := c.atom(e.Field, sc); t != nil && t.Kind != syntax.KindStr {
			c.errorHere("hashtable field must be str, got %s", t)
		}
		if t := c.atom(e.Value, sc); t != nil && !t.Equal(e.Elem) {
			c.errorHere("hashtable write stores %s into a table of %s", t, e.Elem)
		}
		return typ(e.Elem), true

	case *syntax.Push:
		c.container(e.Array, syntax.Array(e.Elem), "push", sc)
		if t := c.atom(e.Value, sc); t != nil && !t.Equal(e.Elem) {
			c.errorHere("push stores %s into an array of %s", t, e.Elem)
		}
		return typ(syntax.I32), true

	case *syntax.CallDirect:
		sym, bound := sc.resolve(e.Fun)
		if !bound {
			c.errorHere("call to undeclared name '%s'", e.Fun)
			return nil, false
		}
		if sym.ty.Kind != syntax.KindFn {
			c.errorHere("'%s' is not callable: it has type %s", e.Fun, sym.ty)
			return nil, false
		}
		c.arguments(e.Fun, sym.ty, e.Args, sc)
		if sym.ty.Result == nil {
			return nil, true
		}
		return sym.ty.Result, true

	case *syntax.CallIndirect:
		if e.Type.Kind != syntax.KindFn {
			c.errorHere("indirect call through '%s' declared with non-function type %s", e.Fun, e.Type)
			return nil, false
		}
		if sym, bound := sc.resolve(e.Fun); !bound {
			c.errorHere("call to undeclared name '%s'", e.Fun)
		} else if !sym.ty.Equal(e.Type) {
			c.errorHere("indirect call declares %s but '%s' holds %s", e.Type, e.Fun, sym.ty)
		}
		c.arguments(e.Fun, e.Type, e.Args, sc)
		if e.Type.Result == nil {
			return nil, true
		}
		return e.Type.Result, true

	case *syntax.ToString:
		if t := c.atom(e.Value, sc); t != nil && t.Kind != syntax.KindStr {
			c.errorHere("string() expects a str operand, got %s", t)
		}
		return typ(syntax.Str), true

	default:
		return nil, false
	}
}

// container checks that an atom has the container type an operation needs.
func (c *checker) container(a syntax.Atom, want syntax.Type, op string, sc *scope) {
	if t := c.atom(a, sc); t != nil && !t.Equal(want) {
		c.errorHere("%s expects %s, got %s", op, want, t)
	}
}

// arguments checks a call's arity and the type of each argument against the
// callee's function type. Arguments are plain identifiers by construction.
func (c *checker) arguments(fun syntax.Id, ft syntax.Type, args []syntax.Id, sc *scope) {
	if len(args) != len(ft.Params) {
		c.errorHere("function '%s' expects %d arguments, got %d", fun, len(ft.Params), len(args))
	}
	for i, arg := range args {
		sym, bound := sc.resolve(arg)
		if !bound {
			c.errorHere("undeclared identifier '%s'", arg)
			continue
		}
		if i < len(ft.Params) && !sym.ty.Equal(ft.Params[i]) {
			c.errorHere("argument %d to '%s': expected %s, got %s", i+1, fun, ft.Params[i], sym.ty)
		}
	}
}

// atom types a leaf. A nil result means a diagnostic was already recorded.
func (c *checker) atom(a syntax.Atom, sc *scope) *syntax.Type {
	switch a := a.(type) {
	case *syntax.Lit:
		switch a.Kind {
		case syntax.IntLit:
			return typ(syntax.I32)
		case syntax.FloatLit:
			return typ(syntax.F64)
		case syntax.BoolLit:
			return typ(syntax.Bool)
		case syntax.StrLit, syntax.InternedLit:
			return typ(syntax.Str)
		}
		return nil

	case *syntax.Ident:
		sym, bound := sc.resolve(a.Name)
		if !bound {
			c.errorHere("undeclared identifier '%s'", a.Name)
			return nil
		}
		return typ(sym.ty)

	case *syntax.HTGet:
		c.container(a.HT, syntax.HT(a.Elem), "hashtable read", sc)
		if t := c.atom(a.Field, sc); t != nil && t.Kind != syntax.KindStr {
			c.errorHere("hashtable field must be str, got %s", t)
		}
		return typ(a.Elem)

	case *syntax.Index:
		c.container(a.Array, syntax.Array(a.Elem), "index", sc)
		if t := c.atom(a.Index, sc); t != nil && t.Kind != syntax.KindI32 {
			c.errorHere("array index must be i32, got %s", t)
		}
		return typ(a.Elem)

	case *syntax.StringLen:
		if t := c.atom(a.Value, sc); t != nil && t.Kind != syntax.KindStr {
			c.errorHere("len() expects a str operand, got %s", t)
		}
		return typ(syntax.I32)

	case *syntax.Binary:
		return c.binary(a, sc)

	case *syntax.Unary:
		t := c.atom(a.Operand, sc)
		if t == nil {
			return nil
		}
		switch a.Op {
		case syntax.F64Neg:
			if t.Kind == syntax.KindF64 {
				return typ(syntax.F64)
			}
		case syntax.I32Eqz:
			if t.Kind == syntax.KindI32 {
				return typ(syntax.Bool)
			}
		case syntax.AnyNeg:
			if t.Kind == syntax.KindAny {
				return typ(syntax.Any)
			}
		}
		c.errorHere("operator %s not defined for %s", a.Op, t)
		return nil

	default:
		return nil
	}
}

func (c *checker) binary(a *syntax.Binary, sc *scope) *syntax.Type {
	l := c.atom(a.Left, sc)
	r := c.atom(a.Right, sc)
	if l == nil || r == nil {
		return nil
	}
	both := func(k syntax.TypeKind) bool { return l.Kind == k && r.Kind == k }

	switch a.Op {
	case syntax.I32Add, syntax.I32Sub, syntax.I32Mul, syntax.I32And, syntax.I32Or, syntax.I32Shl:
		if both(syntax.KindI32) {
			return typ(syntax.I32)
		}
	case syntax.I32Eq, syntax.I32Ne, syntax.I32GT, syntax.I32LT, syntax.I32Ge, syntax.I32Le:
		if both(syntax.KindI32) {
			return typ(syntax.Bool)
		}
	case syntax.F64Add, syntax.F64Sub, syntax.F64Mul, syntax.F64Div:
		if both(syntax.KindF64) {
			return typ(syntax.F64)
		}
	case syntax.F64Eq:
		if both(syntax.KindF64) {
			return typ(syntax.Bool)
		}
	case syntax.PtrEq:
		if l.Equal(*r) && isReference(l.Kind) {
			return typ(syntax.Bool)
		}
	case syntax.AnyPlus, syntax.AnyMinus, syntax.AnyTimes:
		if both(syntax.KindAny) {
			return typ(syntax.Any)
		}
	case syntax.AnyOver:
		if both(syntax.KindAny) {
			return typ(syntax.F64)
		}
	case syntax.AnyStrictEq:
		if both(syntax.KindAny) {
			return typ(syntax.Bool)
		}
	}
	c.errorHere("operator %s not defined for %s and %s", a.Op, l, r)
	return nil
}

// isReference reports whether values of a kind are compared by identity.
func isReference(k syntax.TypeKind) bool {
	switch k {
	case syntax.KindStr, syntax.KindHT, syntax.KindArray, syntax.KindFn:
		return true
	}
	return false
}

func typ(t syntax.Type) *syntax.Type { return &t }

// collectLabels counts every labeled statement under s, for goto target
// resolution.
func collectLabels(s syntax.Stmt, into map[syntax.Label]int) {
	switch s := s.(type) {
	case *syntax.Block:
		for _, st := range s.Stmts {
			collectLabels(st, into)
		}
	case *syntax.If:
		collectLabels(s.Then, into)
		collectLabels(s.Else, into)
	case *syntax.Loop:
		collectLabels(s.Body, into)
	case *syntax.Labeled:
		into[s.Label]++
		collectLabels(s.Body, into)
	}
}

// terminates reports whether control cannot fall out of the bottom of s.
// The analysis is conservative: loops never fall through (they exit only by
// breaking to an enclosing label), while a labeled statement always might
// (a break inside it lands just after it).
func terminates(s syntax.Stmt) bool {
	switch s := s.(type) {
	case *syntax.Return, *syntax.Trap, *syntax.Goto, *syntax.Break:
		return true
	case *syntax.Loop:
		return true
	case *syntax.Block:
		for _, st := range s.Stmts {
			if terminates(st) {
				return true
			}
		}
	case *syntax.If:
		return terminates(s.Then) && terminates(s.Else)
	}
	return false
}
