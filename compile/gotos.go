package compile

import (
	"fmt"

	"github.com/nwlang/notwasm/syntax"
)

// ---------------------------------------------------------------------------
// Goto elimination
//
// Upstream stages are free to emit unstructured forward jumps; lowering only
// speaks block/loop/label/break. The rewrite here wraps everything between a
// jump and its target in a fresh labeled block, so that breaking out of the
// block lands exactly where the jump wanted to go. Jumps with no such
// rendering -- backward jumps, or jumps into the middle of another
// statement -- abort compilation rather than guess.
// ---------------------------------------------------------------------------

// Structure rewrites every goto in the program into structured form. The
// program is modified in place; on error it may be partially rewritten but
// is never lowered.
func Structure(p *syntax.Program) error {
	s := &structurer{}
	for _, f := range p.Functions {
		if err := s.function(f); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}

type structurer struct {
	fresh int // counter for generated label names
}

// function eliminates gotos one target label at a time. Each round removes
// every goto aimed at the chosen label, so the loop terminates.
func (s *structurer) function(f *syntax.Function) error {
	for {
		g := firstGoto(f.Body)
		if g == nil {
			return nil
		}
		if err := s.eliminate(f.Body, g.Label); err != nil {
			return err
		}
	}
}

func (s *structurer) eliminate(body *syntax.Block, label syntax.Label) error {
	switch n := countLabels(body, label); {
	case n == 0:
		return fmt.Errorf("%w: goto %s has no matching label", ErrUnstructuredJump, label)
	case n > 1:
		return fmt.Errorf("%w: goto %s is ambiguous, the label appears %d times", ErrUnstructuredJump, label, n)
	}

	host, t := findTarget(body, label)
	if host == nil {
		return fmt.Errorf("%w: goto %s targets a label buried inside another statement", ErrUnstructuredJump, label)
	}

	// Every goto must sit before the target, somewhere inside the target's
	// own statement sequence. A jump from anywhere else would have to enter
	// a structure sideways, which break cannot express.
	total := countGotos(body, label)
	first, covered := -1, 0
	for k := 0; k < t; k++ {
		if n := countGotos(host.Stmts[k], label); n > 0 {
			if first < 0 {
				first = k
			}
			covered += n
		}
	}
	backward := 0
	for k := t; k < len(host.Stmts); k++ {
		backward += countGotos(host.Stmts[k], label)
	}
	if backward > 0 {
		return fmt.Errorf("%w: goto %s jumps backward", ErrUnstructuredJump, label)
	}
	if covered < total {
		return fmt.Errorf("%w: goto %s jumps into the middle of a structured statement", ErrUnstructuredJump, label)
	}

	// Wrapping hides declarations made between the jump and the target from
	// the statements that follow. If such a binding is still read later the
	// rewrite would change meaning, so refuse.
	for k := first; k < t; k++ {
		v, ok := host.Stmts[k].(*syntax.Var)
		if !ok {
			continue
		}
		for j := t; j < len(host.Stmts); j++ {
			if usesName(host.Stmts[j], v.Name) {
				return fmt.Errorf("%w: goto %s skips the declaration of %s, which is used after the target",
					ErrUnstructuredJump, label, v.Name)
			}
			if v2, ok := host.Stmts[j].(*syntax.Var); ok && v2.Name == v.Name {
				break // shadowed for the rest of the sequence
			}
		}
	}

	fresh := syntax.Label(fmt.Sprintf("$%s.%d", label, s.fresh))
	s.fresh++

	wrapped := make([]syntax.Stmt, t-first)
	copy(wrapped, host.Stmts[first:t])
	for i := range wrapped {
		wrapped[i] = replaceGotos(wrapped[i], label, fresh)
	}

	out := make([]syntax.Stmt, 0, first+1+len(host.Stmts)-t)
	out = append(out, host.Stmts[:first]...)
	out = append(out, &syntax.Labeled{Label: fresh, Body: &syntax.Block{Stmts: wrapped}})
	out = append(out, host.Stmts[t:]...)
	host.Stmts = out
	return nil
}

// replaceGotos rewrites every goto to label under s into a break to fresh.
func replaceGotos(s syntax.Stmt, label, fresh syntax.Label) syntax.Stmt {
	switch s := s.(type) {
	case *syntax.Goto:
		if s.Label == label {
			return &syntax.Break{Label: fresh}
		}
	case *syntax.Block:
		for i := range s.Stmts {
			s.Stmts[i] = replaceGotos(s.Stmts[i], label, fresh)
		}
	case *syntax.If:
		s.Then = replaceGotos(s.Then, label, fresh)
		s.Else = replaceGotos(s.Else, label, fresh)
	case *syntax.Loop:
		s.Body = replaceGotos(s.Body, label, fresh)
	case *syntax.Labeled:
		s.Body = replaceGotos(s.Body, label, fresh)
	}
	return s
}

// children returns the statements nested directly under s.
func children(s syntax.Stmt) []syntax.Stmt {
	switch s := s.(type) {
	case *syntax.Block:
		return s.Stmts
	case *syntax.If:
		return []syntax.Stmt{s.Then, s.Else}
	case *syntax.Loop:
		return []syntax.Stmt{s.Body}
	case *syntax.Labeled:
		return []syntax.Stmt{s.Body}
	}
	return nil
}

// firstGoto returns some goto under s, or nil.
func firstGoto(s syntax.Stmt) *syntax.Goto {
	if g, ok := s.(*syntax.Goto); ok {
		return g
	}
	for _, c := range children(s) {
		if g := firstGoto(c); g != nil {
			return g
		}
	}
	return nil
}

// findTarget returns the statement sequence directly containing the labeled
// statement for label, and its index there. Labels that are not elements of
// a sequence (a bare conditional arm, say) have no host and return nil.
func findTarget(s syntax.Stmt, label syntax.Label) (*syntax.Block, int) {
	if b, ok := s.(*syntax.Block); ok {
		for i, st := range b.Stmts {
			if l, ok := st.(*syntax.Labeled); ok && l.Label == label {
				return b, i
			}
		}
	}
	for _, c := range children(s) {
		if host, i := findTarget(c, label); host != nil {
			return host, i
		}
	}
	return nil, 0
}

func countLabels(s syntax.Stmt, label syntax.Label) int {
	n := 0
	if l, ok := s.(*syntax.Labeled); ok && l.Label == label {
		n++
	}
	for _, c := range children(s) {
		n += countLabels(c, label)
	}
	return n
}

func countGotos(s syntax.Stmt, label syntax.Label) int {
	if g, ok := s.(*syntax.Goto); ok && g.Label == label {
		return 1
	}
	n := 0
	for _, c := range children(s) {
		n += countGotos(c, label)
	}
	return n
}

// usesName reports whether s reads, assigns, or calls name. A redeclaration
// inside a block shadows the name for the rest of that block and stops the
// scan there.
func usesName(s syntax.Stmt, name syntax.Id) bool {
	switch s := s.(type) {
	case *syntax.Block:
		for _, st := range s.Stmts {
			if usesName(st, name) {
				return true
			}
			if v, ok := st.(*syntax.Var); ok && v.Name == name {
				return false
			}
		}
	case *syntax.Var:
		return exprUses(s.Expr, name)
	case *syntax.Assign:
		return s.Name == name || exprUses(s.Expr, name)
	case *syntax.If:
		return atomUses(s.Cond, name) || usesName(s.Then, name) || usesName(s.Else, name)
	case *syntax.Loop:
		return usesName(s.Body, name)
	case *syntax.Labeled:
		return usesName(s.Body, name)
	case *syntax.ExprStmt:
		return exprUses(s.Expr, name)
	case *syntax.Return:
		return atomUses(s.Value, name)
	}
	return false
}

func exprUses(e syntax.Expr, name syntax.Id) bool {
	switch e := e.(type) {
	case *syntax.AtomExpr:
		return atomUses(e.Atom, name)
	case *syntax.HTSet:
		return atomUses(e.HT, name) || atomUses(e.Field, name) || atomUses(e.Value, name)
	case *syntax.Push:
		return atomUses(e.Array, name) || atomUses(e.Value, name)
	case *syntax.CallDirect:
		return e.Fun == name || idsContain(e.Args, name)
	case *syntax.CallIndirect:
		return e.Fun == name || idsContain(e.Args, name)
	case *syntax.ToString:
		return atomUses(e.Value, name)
	}
	return false
}

func atomUses(a syntax.Atom, name syntax.Id) bool {
	switch a := a.(type) {
	case *syntax.Ident:
		return a.Name == name
	case *syntax.HTGet:
		return atomUses(a.HT, name) || atomUses(a.Field, name)
	case *syntax.Index:
		return atomUses(a.Array, name) || atomUses(a.Index, name)
	case *syntax.StringLen:
		return atomUses(a.Value, name)
	case *syntax.Binary:
		return atomUses(a.Left, name) || atomUses(a.Right, name)
	case *syntax.Unary:
		return atomUses(a.Operand, name)
	}
	return false
}

func idsContain(ids []syntax.Id, name syntax.Id) bool {
	for _, id := range ids {
		if id == name {
			return true
		}
	}
	return false
}
