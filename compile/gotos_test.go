package compile

import (
	"errors"
	"strings"
	"testing"

	"github.com/nwlang/notwasm/syntax"
)

func TestForwardGotoBecomesBreak(t *testing.T) {
	p := i32Main(
		syntax.VarAtom("x", syntax.I32, syntax.Int(5)),
		syntax.NewGoto("done"),
		syntax.AssignAtom("x", syntax.Int(9)),
		syntax.NewLabeled("done", syntax.NewBlock()),
		syntax.NewReturn(syntax.Ref("x")),
	)
	if err := Structure(p); err != nil {
		t.Fatalf("structure: %v", err)
	}

	body := p.Functions[0].Body.Stmts
	wrap, ok := body[1].(*syntax.Labeled)
	if !ok || wrap.Label != "$done.0" {
		t.Fatalf("statements between jump and target not wrapped: %T", body[1])
	}
	inner, ok := wrap.Body.(*syntax.Block)
	if !ok {
		t.Fatalf("wrapper body is %T, want block", wrap.Body)
	}
	if br, ok := inner.Stmts[0].(*syntax.Break); !ok || br.Label != wrap.Label {
		t.Fatalf("goto not rewritten to a break out of the wrapper")
	}
	if g := firstGoto(p.Functions[0].Body); g != nil {
		t.Fatalf("goto %s survived structuring", g.Label)
	}

	// Breaking out of the wrapper skips the assignment.
	if got := runMain(t, compileM(t, p)); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestConditionalGoto(t *testing.T) {
	prog := func(taken bool) *syntax.Program {
		return i32Main(
			syntax.VarAtom("x", syntax.I32, syntax.Int(1)),
			syntax.NewIf(syntax.BoolOf(taken),
				syntax.NewBlock(syntax.NewGoto("out")),
				nil,
			),
			syntax.AssignAtom("x", syntax.Int(2)),
			syntax.NewLabeled("out", syntax.NewBlock()),
			syntax.NewReturn(syntax.Ref("x")),
		)
	}
	if got := runMain(t, compileM(t, prog(true))); got != 1 {
		t.Fatalf("taken jump: got %d, want 1", got)
	}
	if got := runMain(t, compileM(t, prog(false))); got != 2 {
		t.Fatalf("untaken jump: got %d, want 2", got)
	}
}

func TestManyGotosOneLabel(t *testing.T) {
	p := i32Main(
		syntax.VarAtom("x", syntax.I32, syntax.Int(1)),
		syntax.NewGoto("out"),
		syntax.AssignAtom("x", syntax.Int(2)),
		syntax.NewGoto("out"),
		syntax.AssignAtom("x", syntax.Int(3)),
		syntax.NewLabeled("out", syntax.NewBlock()),
		syntax.NewReturn(syntax.Ref("x")),
	)
	if got := runMain(t, compileM(t, p)); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestUnstructurableJumps(t *testing.T) {
	tests := []struct {
		name string
		prog *syntax.Program
		want string // fragment of the failure, naming the offender
	}{
		{
			"backward",
			i32Main(
				syntax.NewLabeled("back", syntax.NewBlock()),
				syntax.NewGoto("back"),
				syntax.NewReturn(syntax.Int(0)),
			),
			"goto back jumps backward",
		},
		{
			"into a loop body",
			i32Main(
				syntax.NewGoto("inside"),
				syntax.NewLoop(syntax.NewBlock(
					syntax.NewLabeled("inside", syntax.NewBlock()),
				)),
				syntax.NewReturn(syntax.Int(0)),
			),
			"goto inside jumps into the middle",
		},
		{
			"target not in a sequence",
			i32Main(
				syntax.NewGoto("arm"),
				syntax.NewIf(syntax.BoolOf(true),
					syntax.NewLabeled("arm", syntax.NewBlock()),
					nil,
				),
				syntax.NewReturn(syntax.Int(0)),
			),
			"buried inside another statement",
		},
		{
			"no such label",
			i32Main(
				syntax.NewGoto("nowhere"),
				syntax.NewReturn(syntax.Int(0)),
			),
			"goto nowhere has no matching label",
		},
		{
			"ambiguous label",
			i32Main(
				syntax.NewGoto("dup"),
				syntax.NewLabeled("dup", syntax.NewBlock()),
				syntax.NewLabeled("dup", syntax.NewBlock()),
				syntax.NewReturn(syntax.Int(0)),
			),
			"appears 2 times",
		},
		{
			"skips a live declaration",
			i32Main(
				syntax.NewGoto("after"),
				syntax.VarAtom("y", syntax.I32, syntax.Int(1)),
				syntax.NewLabeled("after", syntax.NewBlock()),
				syntax.NewReturn(syntax.Ref("y")),
			),
			"skips the declaration of y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Structure(tt.prog)
			if !errors.Is(err, ErrUnstructuredJump) {
				t.Fatalf("got %v, want %v", err, ErrUnstructuredJump)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not name the problem %q", err, tt.want)
			}
		})
	}
}

func TestShadowedDeclarationMayBeSkipped(t *testing.T) {
	// The wrapped declaration of y is dead: the sequence after the target
	// redeclares y before reading it.
	p := i32Main(
		syntax.NewGoto("after"),
		syntax.VarAtom("y", syntax.I32, syntax.Int(1)),
		syntax.NewLabeled("after", syntax.NewBlock()),
		syntax.VarAtom("y", syntax.I32, syntax.Int(7)),
		syntax.NewReturn(syntax.Ref("y")),
	)
	if err := Structure(p); err != nil {
		t.Fatalf("structure: %v", err)
	}
	if got := runMain(t, compileM(t, p)); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}
