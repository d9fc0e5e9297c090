package compile

import (
	"errors"
	"strings"
	"testing"

	"github.com/nwlang/notwasm/syntax"
)

func TestEnvShadowing(t *testing.T) {
	outer := Env{}.Bind("x", Binding{Kind: BindLocal, Slot: 0, Type: syntax.I32})
	inner := outer.Bind("x", Binding{Kind: BindLocal, Slot: 1, Type: syntax.F64})

	b, err := inner.Resolve("x")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if b.Slot != 1 || b.Type.Kind != syntax.KindF64 {
		t.Fatalf("inner resolve got slot %d type %s, want the shadowing binding", b.Slot, b.Type)
	}

	// Deriving inner must not disturb outer.
	b, err = outer.Resolve("x")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if b.Slot != 0 || b.Type.Kind != syntax.KindI32 {
		t.Fatalf("outer resolve got slot %d type %s, want the original binding", b.Slot, b.Type)
	}
}

func TestEnvSiblingIsolation(t *testing.T) {
	parent := Env{}.Bind("shared", Binding{Kind: BindLocal, Slot: 0, Type: syntax.I32})
	left := parent.Bind("l", Binding{Kind: BindLocal, Slot: 1, Type: syntax.I32})
	right := parent.Bind("r", Binding{Kind: BindLocal, Slot: 2, Type: syntax.I32})

	if _, err := left.Resolve("r"); !errors.Is(err, ErrUnboundIdentifier) {
		t.Fatalf("left sees right's binding: %v", err)
	}
	if _, err := right.Resolve("l"); !errors.Is(err, ErrUnboundIdentifier) {
		t.Fatalf("right sees left's binding: %v", err)
	}
	for _, e := range []Env{left, right} {
		if _, err := e.Resolve("shared"); err != nil {
			t.Fatalf("parent binding lost: %v", err)
		}
	}
}

func TestEnvResolveUnbound(t *testing.T) {
	_, err := Env{}.Resolve("ghost")
	if !errors.Is(err, ErrUnboundIdentifier) {
		t.Fatalf("got %v, want %v", err, ErrUnboundIdentifier)
	}
	if err != nil && !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("error %q does not carry the name", err)
	}
}

func TestBreakDepth(t *testing.T) {
	e := Env{}.PushLabel("l1").PushAnon().PushLabel("l2")

	d, err := e.BreakDepth("l2")
	if err != nil || d != 0 {
		t.Fatalf("innermost label: got %d, %v; want 0", d, err)
	}
	// The anonymous scope between l2 and l1 counts toward the distance.
	d, err = e.BreakDepth("l1")
	if err != nil || d != 2 {
		t.Fatalf("outer label: got %d, %v; want 2", d, err)
	}

	if _, err := e.BreakDepth("nope"); !errors.Is(err, ErrUnboundLabel) {
		t.Fatalf("got %v, want %v", err, ErrUnboundLabel)
	}
}

func TestAnonymousScopesAreNotTargets(t *testing.T) {
	e := Env{}.PushAnon()
	if _, err := e.BreakDepth(""); !errors.Is(err, ErrUnboundLabel) {
		t.Fatalf("anonymous scope reachable by name: %v", err)
	}
}

func TestBindKeepsLabels(t *testing.T) {
	e := Env{}.PushLabel("x").Bind("v", Binding{Kind: BindLocal, Slot: 0, Type: syntax.I32})
	if d, err := e.BreakDepth("x"); err != nil || d != 0 {
		t.Fatalf("binding an identifier moved the label stack: got %d, %v", d, err)
	}
}
