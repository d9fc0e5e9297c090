package syntax

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// NotWasm types
// ---------------------------------------------------------------------------

// TypeKind discriminates the NotWasm types.
type TypeKind int

const (
	KindI32 TypeKind = iota
	KindF64
	KindBool
	KindStr
	KindAny
	KindHT
	KindArray
	KindFn
)

// Type is a NotWasm type. Scalar kinds use only Kind; HT and Array carry an
// element type; Fn carries parameter types and an optional result type.
type Type struct {
	Kind   TypeKind `cbor:"kind"`
	Elem   *Type    `cbor:"elem,omitempty"`
	Params []Type   `cbor:"params,omitempty"`
	Result *Type    `cbor:"result,omitempty"`
}

// Scalar types, shared by value.
var (
	I32  = Type{Kind: KindI32}
	F64  = Type{Kind: KindF64}
	Bool = Type{Kind: KindBool}
	Str  = Type{Kind: KindStr}
	Any  = Type{Kind: KindAny}
)

// HT returns a hashtable type with the given element type.
func HT(elem Type) Type {
	e := elem
	return Type{Kind: KindHT, Elem: &e}
}

// Array returns an array type with the given element type.
func Array(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// Fn returns a function type. result may be nil for no result.
func Fn(params []Type, result *Type) Type {
	return Type{Kind: KindFn, Params: params, Result: result}
}

var kindNames = map[TypeKind]string{
	KindI32:   "i32",
	KindF64:   "f64",
	KindBool:  "bool",
	KindStr:   "str",
	KindAny:   "any",
	KindHT:    "HT",
	KindArray: "Array",
	KindFn:    "fn",
}

func (t Type) String() string {
	switch t.Kind {
	case KindHT, KindArray:
		return fmt.Sprintf("%s(%s)", kindNames[t.Kind], t.Elem)
	case KindFn:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		sig := "(" + strings.Join(params, ", ") + ")"
		if t.Result != nil {
			return sig + " -> " + t.Result.String()
		}
		return sig
	default:
		return kindNames[t.Kind]
	}
}

// Tag returns the short name used to monomorphize runtime entry points:
// an operation on elements of this type links against "op_tag".
func (t Type) Tag() string {
	switch t.Kind {
	case KindHT:
		return "ht"
	case KindArray:
		return "array"
	case KindFn:
		return "fn"
	default:
		return kindNames[t.Kind]
	}
}

// Equal reports whether two types are structurally identical.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case KindHT, KindArray:
		return t.Elem.Equal(*u.Elem)
	case KindFn:
		if len(t.Params) != len(u.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(u.Params[i]) {
				return false
			}
		}
		if (t.Result == nil) != (u.Result == nil) {
			return false
		}
		return t.Result == nil || t.Result.Equal(*u.Result)
	default:
		return true
	}
}
