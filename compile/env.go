package compile

import (
	"fmt"

	"github.com/nwlang/notwasm/syntax"
)

// BindKind discriminates what a resolved identifier denotes.
type BindKind int

const (
	// BindLocal is a function-local slot, including parameters.
	BindLocal BindKind = iota
	// BindGlobal is a module-level global, indexed after imported globals.
	BindGlobal
	// BindFunc is a top-level function; its value is a call-table index.
	BindFunc
)

// Binding is the result of resolving an identifier: where the value lives
// and what type it carries.
type Binding struct {
	Kind BindKind
	Slot uint32 // local slot, global index, or call-table index
	Type syntax.Type
	Mut  bool // assignable; always true for locals
}

// Env is the translation-time scope: identifier bindings plus the stack of
// enclosing break targets. Env values are immutable. Bind, PushLabel and
// PushAnon return derived environments that share the parent chain, so
// extending one branch of the tree costs O(1) and can never leak bindings
// into a sibling branch.
type Env struct {
	ids    *binding
	labels *marker
}

type binding struct {
	name syntax.Id
	b    Binding
	prev *binding
}

// marker is one enclosing control scope. Anonymous scopes (conditional arms,
// loop bodies) cannot be broken to but still occupy a position in the
// numbering, because branch distances count every enclosing scope.
type marker struct {
	label syntax.Label
	named bool
	prev  *marker
}

// Bind returns e extended with name bound to b. Shadowing is permitted;
// Resolve always finds the innermost binding.
func (e Env) Bind(name syntax.Id, b Binding) Env {
	return Env{ids: &binding{name: name, b: b, prev: e.ids}, labels: e.labels}
}

// PushLabel returns e extended with a named break target.
func (e Env) PushLabel(label syntax.Label) Env {
	return Env{ids: e.ids, labels: &marker{label: label, named: true, prev: e.labels}}
}

// PushAnon returns e extended with an anonymous control scope.
func (e Env) PushAnon() Env {
	return Env{ids: e.ids, labels: &marker{prev: e.labels}}
}

// Resolve returns the innermost binding for name.
func (e Env) Resolve(name syntax.Id) (Binding, error) {
	for b := e.ids; b != nil; b = b.prev {
		if b.name == name {
			return b.b, nil
		}
	}
	return Binding{}, fmt.Errorf("%w: %s", ErrUnboundIdentifier, name)
}

// BreakDepth returns the branch distance from a break site to the named
// target: the number of control scopes between them, innermost first, with
// anonymous scopes counted. A break to the immediately enclosing label has
// distance zero.
func (e Env) BreakDepth(label syntax.Label) (uint32, error) {
	var depth uint32
	for m := e.labels; m != nil; m = m.prev {
		if m.named && m.label == label {
			return depth, nil
		}
		depth++
	}
	return 0, fmt.Errorf("%w: %s", ErrUnboundLabel, label)
}
