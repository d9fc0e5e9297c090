package compile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/nwlang/notwasm/syntax"
)

func TestInternDedup(t *testing.T) {
	a := syntax.String("wow")
	b := syntax.String("wow")
	c := syntax.String("whoa")
	p := i32Main(
		syntax.NewVar("s1", syntax.Str, &syntax.ToString{Value: a}),
		syntax.NewVar("s2", syntax.Str, &syntax.ToString{Value: b}),
		syntax.NewVar("s3", syntax.Str, &syntax.ToString{Value: c}),
		syntax.NewReturn(syntax.Int(0)),
	)
	Intern(p)

	for _, lit := range []*syntax.Lit{a, b, c} {
		if lit.Kind != syntax.InternedLit {
			t.Fatalf("literal %q not interned", lit.Str)
		}
	}
	if a.Addr != b.Addr {
		t.Fatalf("identical text interned at %d and %d, want one offset", a.Addr, b.Addr)
	}
	if c.Addr == a.Addr {
		t.Fatalf("distinct text shares offset %d", c.Addr)
	}

	// Entries are a little-endian length word followed by the bytes, and
	// the offset points at the length word.
	entry := func(addr uint32) string {
		n := binary.LittleEndian.Uint32(p.Data[addr:])
		return string(p.Data[addr+4 : addr+4+n])
	}
	if got := entry(a.Addr); got != "wow" {
		t.Fatalf("blob at %d holds %q, want wow", a.Addr, got)
	}
	if got := entry(c.Addr); got != "whoa" {
		t.Fatalf("blob at %d holds %q, want whoa", c.Addr, got)
	}

	// One copy of each text: 4+3 for wow, 4+4 for whoa.
	if len(p.Data) != 15 {
		t.Fatalf("blob is %d bytes, want 15", len(p.Data))
	}
}

func TestInternIdempotent(t *testing.T) {
	lit := syntax.String("steady")
	p := i32Main(
		syntax.NewVar("s", syntax.Str, &syntax.ToString{Value: lit}),
		syntax.NewReturn(syntax.Int(0)),
	)
	Intern(p)
	addr, blob := lit.Addr, append([]byte(nil), p.Data...)

	Intern(p)
	if lit.Addr != addr {
		t.Fatalf("re-interning moved the literal from %d to %d", addr, lit.Addr)
	}
	if !bytes.Equal(p.Data, blob) {
		t.Fatalf("re-interning changed the blob")
	}
}

func TestInternExtendsExistingBlob(t *testing.T) {
	first := i32Main(
		syntax.NewVar("s", syntax.Str, &syntax.ToString{Value: syntax.String("wow")}),
		syntax.NewReturn(syntax.Int(0)),
	)
	Intern(first)

	old := syntax.String("wow")
	fresh := syntax.String("new")
	second := i32Main(
		syntax.NewVar("s1", syntax.Str, &syntax.ToString{Value: old}),
		syntax.NewVar("s2", syntax.Str, &syntax.ToString{Value: fresh}),
		syntax.NewReturn(syntax.Int(0)),
	)
	second.Data = first.Data
	Intern(second)

	if old.Addr != 0 {
		t.Fatalf("existing entry not reused: got offset %d, want 0", old.Addr)
	}
	if fresh.Addr != uint32(len(first.Data)) {
		t.Fatalf("new entry at %d, want appended at %d", fresh.Addr, len(first.Data))
	}
}

func TestInternReachesNestedAtoms(t *testing.T) {
	field := syntax.String("key")
	cond := syntax.String("flag")
	p := i32Main(
		syntax.NewVar("h", syntax.HT(syntax.I32), &syntax.NewHT{Elem: syntax.I32}),
		syntax.NewIf(
			syntax.NewBinary(syntax.PtrEq, cond, syntax.String("flag")),
			syntax.VarAtom("v", syntax.I32, &syntax.HTGet{HT: syntax.Ref("h"), Field: field, Elem: syntax.I32}),
			nil,
		),
		syntax.NewReturn(syntax.Int(0)),
	)
	Intern(p)
	if field.Kind != syntax.InternedLit {
		t.Fatalf("container field literal not interned")
	}
	if cond.Kind != syntax.InternedLit {
		t.Fatalf("condition literal not interned")
	}
}
