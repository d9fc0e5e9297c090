package check

import "github.com/nwlang/notwasm/syntax"

// symKind says what a name denotes at its definition site.
type symKind int

const (
	symVar symKind = iota
	symGlobal
	symFunc
)

func (k symKind) String() string {
	switch k {
	case symVar:
		return "variable"
	case symGlobal:
		return "global"
	case symFunc:
		return "function"
	default:
		return "unknown"
	}
}

type symbol struct {
	ty   syntax.Type
	kind symKind
	mut  bool
}

// scope is one lexical frame. Lookups walk toward the root; definitions land
// in the current frame, so sibling frames never see each other's names.
type scope struct {
	parent *scope
	names  map[syntax.Id]symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[syntax.Id]symbol)}
}

// define binds name in this frame. Redefining a name shadows it for the rest
// of the frame, matching how lowering rebinds declarations.
func (s *scope) define(name syntax.Id, sym symbol) {
	s.names[name] = sym
}

// resolve returns the innermost binding for name.
func (s *scope) resolve(name syntax.Id) (symbol, bool) {
	for f := s; f != nil; f = f.parent {
		if sym, ok := f.names[name]; ok {
			return sym, true
		}
	}
	return symbol{}, false
}
