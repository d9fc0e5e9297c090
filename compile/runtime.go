package compile

import "github.com/nwlang/notwasm/syntax"

// ---------------------------------------------------------------------------
// Runtime linkage
//
// Compiled modules implement no strings, hashtables, arrays, or dynamic
// values of their own; they import entry points from a host-provided module.
// Container operations are monomorphized by the element type's short tag, so
// reading from an i32 hashtable links against "ht_get_i32". The surface is
// fixed at build time: a program that needs an operation/element combination
// outside this list fails to link, it never guesses.
// ---------------------------------------------------------------------------

const (
	// DefaultRuntimeModule is the wasm import module runtime symbols come
	// from unless overridden.
	DefaultRuntimeModule = "runtime"

	// InitFunction is the runtime bootstrap. Every compiled main calls it
	// before its first own instruction.
	InitFunction = "init"

	// StringsGlobal is the imported i32 global holding the load address of
	// the interned string blob.
	StringsGlobal = "STRINGS"

	// MemoryName is the imported linear memory.
	MemoryName = "memory"

	// MainFunction is the one export of every compiled module.
	MainFunction = "main"
)

// stringsGlobalIndex is the wasm index of the STRINGS global. It is the only
// imported global, so it always comes first in the global index space.
const stringsGlobalIndex = 0

// RuntimeFn is one function the runtime exports to compiled code.
type RuntimeFn struct {
	Name string
	Type syntax.Type
}

// monoElems are the element types the runtime ships container
// specializations for. Containers of containers share no specialization;
// programs that need one fail to link.
var monoElems = []syntax.Type{syntax.I32, syntax.F64, syntax.Bool, syntax.Str, syntax.Any}

// RuntimeFns returns the runtime's function surface in import order. The
// order is load-bearing: imported functions occupy wasm indices 0..n-1 and
// user functions follow, so reordering this list changes every call site.
func RuntimeFns() []RuntimeFn {
	fns := []RuntimeFn{
		{InitFunction, syntax.Fn(nil, nil)},
		{"string_from_str", fnType(result(syntax.Str), syntax.I32)},
		{"string_len", fnType(result(syntax.I32), syntax.Str)},
		{"string_cat", fnType(result(syntax.Str), syntax.Str, syntax.Str)},
		{"any_plus", fnType(result(syntax.Any), syntax.Any, syntax.Any)},
		{"any_minus", fnType(result(syntax.Any), syntax.Any, syntax.Any)},
		{"any_times", fnType(result(syntax.Any), syntax.Any, syntax.Any)},
		{"any_over", fnType(result(syntax.F64), syntax.Any, syntax.Any)},
		{"any_strict_eq", fnType(result(syntax.Bool), syntax.Any, syntax.Any)},
		{"any_neg", fnType(result(syntax.Any), syntax.Any)},
	}
	for _, elem := range monoElems {
		fns = append(fns,
			RuntimeFn{monoName("ht_new", elem), fnType(result(syntax.HT(elem)))},
			RuntimeFn{monoName("ht_get", elem), fnType(result(elem), syntax.HT(elem), syntax.Str)},
			RuntimeFn{monoName("ht_set", elem), fnType(result(elem), syntax.HT(elem), syntax.Str, elem)},
			RuntimeFn{monoName("array_new", elem), fnType(result(syntax.Array(elem)))},
			RuntimeFn{monoName("array_push", elem), fnType(result(syntax.I32), syntax.Array(elem), elem)},
			RuntimeFn{monoName("array_index", elem), fnType(result(elem), syntax.Array(elem), syntax.I32)},
		)
	}
	return fns
}

// monoName derives the runtime symbol for an operation specialized to an
// element type.
func monoName(op string, elem syntax.Type) string {
	return op + "_" + elem.Tag()
}

func fnType(res *syntax.Type, params ...syntax.Type) syntax.Type {
	return syntax.Fn(params, res)
}

func result(t syntax.Type) *syntax.Type { return &t }
