package compile

import (
	"encoding/binary"

	"github.com/nwlang/notwasm/syntax"
)

// ---------------------------------------------------------------------------
// String interning
//
// Every string literal in a program is hoisted into one shared data blob
// before lowering; the literal nodes are rewritten in place to carry their
// blob offset. Identical literals share a single entry, so pointer equality
// on interned strings coincides with text equality. Blob entries are a
// 4-byte little-endian length followed by the raw bytes, and offsets point
// at the length word.
// ---------------------------------------------------------------------------

// Intern rewrites all string literals in p to interned offsets and stores
// the accumulated blob on the program. Running it twice is harmless: an
// already-interned literal is left alone, and existing blob entries are
// reused for any new text they already cover.
func Intern(p *syntax.Program) {
	in := &interner{offsets: make(map[string]uint32), blob: p.Data}
	in.seed()
	for _, g := range p.Globals {
		in.atom(g.Init)
	}
	for _, f := range p.Functions {
		in.stmt(f.Body)
	}
	p.Data = in.blob
}

type interner struct {
	offsets map[string]uint32
	blob    []byte
}

// seed rebuilds the text-to-offset index from an existing blob, so that
// re-interning an extended program dedups against entries already laid out.
func (in *interner) seed() {
	for off := uint32(0); off+4 <= uint32(len(in.blob)); {
		n := binary.LittleEndian.Uint32(in.blob[off:])
		end := off + 4 + n
		if end > uint32(len(in.blob)) {
			return // trailing garbage; leave it untouched
		}
		in.offsets[string(in.blob[off+4:end])] = off
		off = end
	}
}

func (in *interner) intern(text string) uint32 {
	if off, ok := in.offsets[text]; ok {
		return off
	}
	off := uint32(len(in.blob))
	var lenWord [4]byte
	binary.LittleEndian.PutUint32(lenWord[:], uint32(len(text)))
	in.blob = append(in.blob, lenWord[:]...)
	in.blob = append(in.blob, text...)
	in.offsets[text] = off
	return off
}

func (in *interner) stmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.Block:
		for _, st := range s.Stmts {
			in.stmt(st)
		}
	case *syntax.Var:
		in.expr(s.Expr)
	case *syntax.Assign:
		in.expr(s.Expr)
	case *syntax.If:
		in.atom(s.Cond)
		in.stmt(s.Then)
		in.stmt(s.Else)
	case *syntax.Loop:
		in.stmt(s.Body)
	case *syntax.Labeled:
		in.stmt(s.Body)
	case *syntax.ExprStmt:
		in.expr(s.Expr)
	case *syntax.Return:
		in.atom(s.Value)
	}
	// Empty, Break, Trap, and Goto carry no atoms.
}

func (in *interner) expr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.AtomExpr:
		in.atom(e.Atom)
	case *syntax.HTSet:
		in.atom(e.HT)
		in.atom(e.Field)
		in.atom(e.Value)
	case *syntax.Push:
		in.atom(e.Array)
		in.atom(e.Value)
	case *syntax.ToString:
		in.atom(e.Value)
	}
	// Allocations and calls reference only names and types.
}

func (in *interner) atom(a syntax.Atom) {
	switch a := a.(type) {
	case *syntax.Lit:
		if a.Kind == syntax.StrLit {
			a.Addr = in.intern(a.Str)
			a.Kind = syntax.InternedLit
		}
	case *syntax.HTGet:
		in.atom(a.HT)
		in.atom(a.Field)
	case *syntax.Index:
		in.atom(a.Array)
		in.atom(a.Index)
	case *syntax.StringLen:
		in.atom(a.Value)
	case *syntax.Binary:
		in.atom(a.Left)
		in.atom(a.Right)
	case *syntax.Unary:
		in.atom(a.Operand)
	}
}
