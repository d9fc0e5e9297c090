package compile

import (
	"testing"

	"github.com/nwlang/notwasm/wasm"
)

// ---------------------------------------------------------------------------
// Test evaluator
//
// Scenario tests run compiled modules against a stub runtime: init does
// nothing, string_from_str is the identity on its pointer argument, and the
// STRINGS base global is zero. The evaluator walks the structured
// instruction stream directly and covers exactly the i32 subset the
// lowering emits; anything outside it fails the test loudly.
// ---------------------------------------------------------------------------

type machine struct {
	t       *testing.T
	m       *wasm.Module
	rt      uint32
	globals []int64 // index 0 is the imported STRINGS base
}

func newMachine(t *testing.T, m *wasm.Module) *machine {
	t.Helper()
	ma := &machine{t: t, m: m, rt: m.ImportedFuncs()}
	ma.globals = append(ma.globals, 0)
	for i, g := range m.Globals {
		if len(g.Init) != 1 {
			t.Fatalf("global %d: unsupported initializer", i)
		}
		switch g.Init[0].Op {
		case wasm.OpI32Const:
			ma.globals = append(ma.globals, int64(g.Init[0].I32V))
		default:
			t.Fatalf("global %d: unsupported initializer opcode %#x", i, byte(g.Init[0].Op))
		}
	}
	return ma
}

// runMain executes the exported main and returns its i32 result.
func runMain(t *testing.T, m *wasm.Module) int64 {
	t.Helper()
	ma := newMachine(t, m)
	for _, e := range m.Exports {
		if e.Name == "main" && e.Kind == wasm.KindFunc {
			res := ma.call(e.Index, nil)
			if len(res) != 1 {
				t.Fatalf("main returned %d values, want 1", len(res))
			}
			return res[0]
		}
	}
	t.Fatalf("module exports no main function")
	return 0
}

func (ma *machine) typeOf(fidx uint32) wasm.FuncType {
	if fidx < ma.rt {
		return ma.m.Types[ma.m.Imports[fidx].TypeIndex]
	}
	return ma.m.Types[ma.m.Funcs[fidx-ma.rt].TypeIndex]
}

func (ma *machine) call(fidx uint32, args []int64) []int64 {
	if fidx < ma.rt {
		switch name := ma.m.Imports[fidx].Name; name {
		case "init":
			return nil
		case "string_from_str":
			return []int64{args[0]} // identity: interned pointers are the string values
		default:
			ma.t.Fatalf("stub runtime does not implement %s", name)
			return nil
		}
	}
	fn := ma.m.Funcs[fidx-ma.rt]
	ft := ma.m.Types[fn.TypeIndex]
	if len(args) != len(ft.Params) {
		ma.t.Fatalf("function %d: got %d args, want %d", fidx, len(args), len(ft.Params))
	}
	locals := make([]int64, len(ft.Params)+len(fn.Locals))
	copy(locals, args)
	return ma.exec(fn.Body, ft, locals)
}

type ctlFrame struct {
	op    wasm.Opcode
	start int // first instruction inside the construct
	end   int // index of the matching end
}

func (ma *machine) exec(body []wasm.Instr, ft wasm.FuncType, locals []int64) []int64 {
	endOf, elseOf := scanBlocks(body)

	var stack []int64
	var ctls []ctlFrame

	push := func(v int64) { stack = append(stack, v) }
	pop := func() int64 {
		if len(stack) == 0 {
			ma.t.Fatalf("operand stack underflow at function of type %s", ft.Key())
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	popN := func(n int) []int64 {
		args := make([]int64, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = pop()
		}
		return args
	}
	branch := func(n int) int {
		if n >= len(ctls) {
			ma.t.Fatalf("branch depth %d exceeds %d open scopes", n, len(ctls))
		}
		target := ctls[len(ctls)-1-n]
		if target.op == wasm.OpLoop {
			ctls = ctls[:len(ctls)-n] // keep the loop frame itself
			return target.start
		}
		ctls = ctls[:len(ctls)-1-n]
		return target.end + 1
	}

	pc := 0
	for pc < len(body) {
		in := body[pc]
		switch in.Op {
		case wasm.OpBlock, wasm.OpLoop:
			ctls = append(ctls, ctlFrame{op: in.Op, start: pc + 1, end: endOf[pc]})
			pc++
		case wasm.OpIf:
			frame := ctlFrame{op: in.Op, start: pc + 1, end: endOf[pc]}
			els, hasElse := elseOf[pc]
			switch {
			case pop() != 0:
				ctls = append(ctls, frame)
				pc++
			case hasElse:
				ctls = append(ctls, frame)
				pc = els + 1
			default:
				pc = frame.end + 1
			}
		case wasm.OpElse:
			// Reached linearly only when the then arm finishes.
			frame := ctls[len(ctls)-1]
			ctls = ctls[:len(ctls)-1]
			pc = frame.end + 1
		case wasm.OpEnd:
			if len(ctls) > 0 {
				ctls = ctls[:len(ctls)-1]
			}
			pc++
		case wasm.OpBr:
			pc = branch(int(in.N))
		case wasm.OpBrIf:
			if pop() != 0 {
				pc = branch(int(in.N))
			} else {
				pc++
			}
		case wasm.OpReturn:
			if len(ft.Results) == 1 {
				return []int64{pop()}
			}
			return nil
		case wasm.OpCall:
			callee := ma.typeOf(in.N)
			res := ma.call(in.N, popN(len(callee.Params)))
			for _, v := range res {
				push(v)
			}
			pc++
		case wasm.OpCallIndirect:
			slot := pop()
			if ma.m.Table == nil || slot < 0 || int(slot) >= len(ma.m.Table.Elems) {
				ma.t.Fatalf("indirect call to table slot %d out of range", slot)
			}
			target := ma.m.Table.Elems[slot]
			callee := ma.typeOf(target)
			if !callee.Equal(ma.m.Types[in.N]) {
				ma.t.Fatalf("indirect call type mismatch: have %s, want %s", callee.Key(), ma.m.Types[in.N].Key())
			}
			res := ma.call(target, popN(len(callee.Params)))
			for _, v := range res {
				push(v)
			}
			pc++
		case wasm.OpDrop:
			pop()
			pc++
		case wasm.OpLocalGet:
			push(locals[in.N])
			pc++
		case wasm.OpLocalSet:
			locals[in.N] = pop()
			pc++
		case wasm.OpLocalTee:
			locals[in.N] = stack[len(stack)-1]
			pc++
		case wasm.OpGlobalGet:
			push(ma.globals[in.N])
			pc++
		case wasm.OpGlobalSet:
			ma.globals[in.N] = pop()
			pc++
		case wasm.OpI32Const:
			push(int64(in.I32V))
			pc++
		case wasm.OpI32Eqz:
			push(b2i(pop() == 0))
			pc++
		case wasm.OpUnreachable:
			ma.t.Fatalf("unreachable executed")
		default:
			b := pop()
			a := pop()
			push(ma.i32Binop(in.Op, int32(a), int32(b)))
			pc++
		}
	}
	if len(ft.Results) == 1 {
		return []int64{pop()}
	}
	return nil
}

func (ma *machine) i32Binop(op wasm.Opcode, a, b int32) int64 {
	switch op {
	case wasm.OpI32Add:
		return int64(a + b)
	case wasm.OpI32Sub:
		return int64(a - b)
	case wasm.OpI32Mul:
		return int64(a * b)
	case wasm.OpI32DivS:
		if b == 0 {
			ma.t.Fatalf("i32.div_s by zero")
		}
		return int64(a / b)
	case wasm.OpI32And:
		return int64(a & b)
	case wasm.OpI32Or:
		return int64(a | b)
	case wasm.OpI32Xor:
		return int64(a ^ b)
	case wasm.OpI32Shl:
		return int64(a << (uint32(b) & 31))
	case wasm.OpI32ShrS:
		return int64(a >> (uint32(b) & 31))
	case wasm.OpI32Eq:
		return b2i(a == b)
	case wasm.OpI32Ne:
		return b2i(a != b)
	case wasm.OpI32LtS:
		return b2i(a < b)
	case wasm.OpI32GtS:
		return b2i(a > b)
	case wasm.OpI32LeS:
		return b2i(a <= b)
	case wasm.OpI32GeS:
		return b2i(a >= b)
	default:
		ma.t.Fatalf("test evaluator does not implement opcode %#x", byte(op))
		return 0
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// scanBlocks pairs every block/loop/if opener with its else and end.
func scanBlocks(body []wasm.Instr) (endOf, elseOf map[int]int) {
	endOf = make(map[int]int)
	elseOf = make(map[int]int)
	var openers []int
	for i, in := range body {
		switch in.Op {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			openers = append(openers, i)
		case wasm.OpElse:
			elseOf[openers[len(openers)-1]] = i
		case wasm.OpEnd:
			// The function's own terminating end has no opener.
			if len(openers) > 0 {
				endOf[openers[len(openers)-1]] = i
				openers = openers[:len(openers)-1]
			}
		}
	}
	return endOf, elseOf
}
