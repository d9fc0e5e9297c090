package compile

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/nwlang/notwasm/syntax"
	"github.com/nwlang/notwasm/wasm"
)

var log = commonlog.GetLogger("notwasm.compile")

// Options configures module assembly.
type Options struct {
	// RuntimeModule overrides the wasm import module runtime symbols come
	// from. Empty means DefaultRuntimeModule.
	RuntimeModule string
}

// Compile lowers a program to a linked wasm binary. The program is modified
// in place by interning and goto elimination. On error no bytes are
// returned: compilation is all or nothing.
func Compile(p *syntax.Program) ([]byte, error) {
	m, err := CompileModule(p, Options{})
	if err != nil {
		return nil, err
	}
	return wasm.Encode(m)
}

// CompileModule runs the full pipeline -- interning, goto elimination,
// lowering, assembly -- and returns the module form, which tooling can
// inspect or disassemble before encoding.
func CompileModule(p *syntax.Program, opts Options) (*wasm.Module, error) {
	Intern(p)
	log.Debugf("interned string blob: %d bytes", len(p.Data))
	if err := Structure(p); err != nil {
		return nil, err
	}
	m, err := assemble(p, opts)
	if err != nil {
		return nil, err
	}
	log.Debugf("assembled module: %d functions, %d deduplicated types", len(m.Funcs), len(m.Types))
	return m, nil
}

// ---------------------------------------------------------------------------
// Module assembly
// ---------------------------------------------------------------------------

type assembler struct {
	module *wasm.Module
	rt     map[string]uint32 // runtime symbol -> imported function index
	rtFns  uint32            // count of imported runtime functions
}

func assemble(p *syntax.Program, opts Options) (*wasm.Module, error) {
	rtModule := opts.RuntimeModule
	if rtModule == "" {
		rtModule = DefaultRuntimeModule
	}

	a := &assembler{module: &wasm.Module{}, rt: make(map[string]uint32)}
	m := a.module

	// The entire runtime surface is imported up front, in fixed order, with
	// signatures deduplicated into the type section. User function indices
	// start right after.
	for i, fn := range RuntimeFns() {
		m.Imports = append(m.Imports, wasm.Import{
			Module:    rtModule,
			Name:      fn.Name,
			Kind:      wasm.KindFunc,
			TypeIndex: m.AddType(wasmFuncType(fn.Type)),
		})
		a.rt[fn.Name] = uint32(i)
	}
	m.Imports = append(m.Imports, wasm.Import{
		Module: rtModule,
		Name:   MemoryName,
		Kind:   wasm.KindMemory,
	})
	m.Imports = append(m.Imports, wasm.Import{
		Module:     rtModule,
		Name:       StringsGlobal,
		Kind:       wasm.KindGlobal,
		GlobalType: wasm.I32,
	})
	a.rtFns = m.ImportedFuncs()

	// The interned blob loads wherever the runtime placed the STRINGS base.
	m.Data = append(m.Data, wasm.DataSeg{
		Offset: []wasm.Instr{wasm.GlobalGet(stringsGlobalIndex)},
		Bytes:  p.Data,
	})

	if len(p.Functions) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d functions", ErrTooManyFunctions, len(p.Functions))
	}

	// Top-level bindings: globals first, then functions. Function values are
	// call-table indices, so binding k-th function to k keeps identifier
	// reads, table entries, and direct calls consistent.
	env := Env{}
	seen := make(map[syntax.Id]bool)
	for i, g := range p.Globals {
		if seen[g.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, g.Name)
		}
		seen[g.Name] = true
		init, err := globalInit(g)
		if err != nil {
			return nil, err
		}
		idx := m.ImportedGlobals() + uint32(i)
		m.Globals = append(m.Globals, wasm.Global{Type: valType(g.Type), Mutable: g.Mutable, Init: init})
		env = env.Bind(g.Name, Binding{Kind: BindGlobal, Slot: idx, Type: g.Type, Mut: g.Mutable})
	}
	mainIdx := -1
	for i, f := range p.Functions {
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, f.Name)
		}
		seen[f.Name] = true
		if string(f.Name) == MainFunction {
			if len(f.Params) > 0 {
				return nil, ErrMainSignature
			}
			mainIdx = i
		}
		env = env.Bind(f.Name, Binding{Kind: BindFunc, Slot: uint32(i), Type: f.Type()})
	}
	if mainIdx < 0 {
		return nil, ErrNoMain
	}

	// Identity call table: slot i dispatches to the i-th user function.
	table := &wasm.Table{Min: uint32(len(p.Functions))}
	for i := range p.Functions {
		table.Elems = append(table.Elems, a.rtFns+uint32(i))
	}
	m.Table = table

	for _, f := range p.Functions {
		fn, err := a.function(f, env)
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, fn)
	}

	m.Exports = append(m.Exports, wasm.Export{
		Name:  MainFunction,
		Kind:  wasm.KindFunc,
		Index: a.rtFns + uint32(mainIdx),
	})
	return m, nil
}

// globalInit encodes a global's initializer as a constant expression. Only
// scalar literals have one; strings would need address arithmetic, which
// constant expressions cannot carry.
func globalInit(g *syntax.Global) ([]wasm.Instr, error) {
	lit, ok := g.Init.(*syntax.Lit)
	if !ok {
		return nil, fmt.Errorf("%w: global %s", ErrGlobalInit, g.Name)
	}
	switch lit.Kind {
	case syntax.IntLit:
		return []wasm.Instr{wasm.I32Const(lit.I32)}, nil
	case syntax.FloatLit:
		return []wasm.Instr{wasm.F64Const(lit.F64)}, nil
	case syntax.BoolLit:
		return []wasm.Instr{wasm.I32Const(boolConst(lit.Bool))}, nil
	default:
		return nil, fmt.Errorf("%w: global %s", ErrGlobalInit, g.Name)
	}
}

// function lowers one function body. Parameters occupy the first local
// slots; declarations allocate the rest. main additionally calls the
// runtime bootstrap before anything else.
func (a *assembler) function(f *syntax.Function, env Env) (wasm.Func, error) {
	t := &translator{a: a}
	for _, p := range f.Params {
		env = env.Bind(p.Name, Binding{Kind: BindLocal, Slot: t.nextSlot, Type: p.Type, Mut: true})
		t.nextSlot++
	}
	if _, err := t.stmt(env, f.Body); err != nil {
		return wasm.Func{}, fmt.Errorf("function %s: %w", f.Name, err)
	}
	t.emit(wasm.End())

	body := t.out
	if string(f.Name) == MainFunction {
		init, err := a.rtIndex(InitFunction)
		if err != nil {
			return wasm.Func{}, err
		}
		body = append([]wasm.Instr{wasm.Call(init)}, body...)
	}
	return wasm.Func{
		TypeIndex: a.module.AddType(wasmFuncType(f.Type())),
		Locals:    t.locals,
		Body:      body,
	}, nil
}

func (a *assembler) rtIndex(name string) (uint32, error) {
	idx, ok := a.rt[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingRuntime, name)
	}
	return idx, nil
}

// ---------------------------------------------------------------------------
// Lowering
// ---------------------------------------------------------------------------

// translator lowers one function. The instruction stream and the local
// allocator are function-scoped and grow monotonically; scoping lives in the
// Env values threaded through the recursion, never in the translator.
type translator struct {
	a        *assembler
	out      []wasm.Instr
	locals   []wasm.ValType // declared locals; parameters are not listed
	nextSlot uint32
}

func (t *translator) emit(in ...wasm.Instr) {
	t.out = append(t.out, in...)
}

// alloc reserves a fresh local slot. Slots are never reused, even when the
// declaring scope ends; distinct declarations must never alias.
func (t *translator) alloc(ty syntax.Type) uint32 {
	slot := t.nextSlot
	t.nextSlot++
	t.locals = append(t.locals, valType(ty))
	return slot
}

// stmt lowers one statement and returns the environment for the statement
// that follows it. Only declarations extend the environment; everything
// else passes it through.
func (t *translator) stmt(env Env, s syntax.Stmt) (Env, error) {
	switch s := s.(type) {
	case *syntax.Empty:
		return env, nil

	case *syntax.Block:
		inner := env
		for _, st := range s.Stmts {
			var err error
			if inner, err = t.stmt(inner, st); err != nil {
				return env, err
			}
		}
		return env, nil // inner bindings do not outlive the block

	case *syntax.Var:
		if err := t.value(env, s.Expr, s.Name); err != nil {
			return env, err
		}
		slot := t.alloc(s.Type)
		t.emit(wasm.LocalSet(slot))
		return env.Bind(s.Name, Binding{Kind: BindLocal, Slot: slot, Type: s.Type, Mut: true}), nil

	case *syntax.Assign:
		if err := t.value(env, s.Expr, s.Name); err != nil {
			return env, err
		}
		b, err := env.Resolve(s.Name)
		if err != nil {
			return env, err
		}
		switch {
		case b.Kind == BindLocal:
			t.emit(wasm.LocalSet(b.Slot))
		case b.Kind == BindGlobal && b.Mut:
			t.emit(wasm.GlobalSet(b.Slot))
		default:
			return env, fmt.Errorf("%w: %s", ErrBadAssign, s.Name)
		}
		return env, nil

	case *syntax.If:
		if err := t.atom(env, s.Cond); err != nil {
			return env, err
		}
		t.emit(wasm.If(wasm.BlockVoid))
		if _, err := t.stmt(env.PushAnon(), s.Then); err != nil {
			return env, err
		}
		t.emit(wasm.Else())
		if _, err := t.stmt(env.PushAnon(), s.Else); err != nil {
			return env, err
		}
		t.emit(wasm.End())
		return env, nil

	case *syntax.Loop:
		t.emit(wasm.Loop(wasm.BlockVoid))
		if _, err := t.stmt(env.PushAnon(), s.Body); err != nil {
			return env, err
		}
		// Falling off the body repeats it; loops end only by breaking out.
		t.emit(wasm.Br(0), wasm.End())
		return env, nil

	case *syntax.Labeled:
		t.emit(wasm.Block(wasm.BlockVoid))
		if _, err := t.stmt(env.PushLabel(s.Label), s.Body); err != nil {
			return env, err
		}
		t.emit(wasm.End())
		return env, nil

	case *syntax.Break:
		depth, err := env.BreakDepth(s.Label)
		if err != nil {
			return env, err
		}
		t.emit(wasm.Br(depth))
		return env, nil

	case *syntax.ExprStmt:
		if err := t.expr(env, s.Expr); err != nil {
			return env, err
		}
		yields, err := exprYields(env, s.Expr)
		if err != nil {
			return env, err
		}
		if yields {
			t.emit(wasm.Drop())
		}
		return env, nil

	case *syntax.Return:
		if err := t.atom(env, s.Value); err != nil {
			return env, err
		}
		t.emit(wasm.Return())
		return env, nil

	case *syntax.Trap:
		t.emit(wasm.Unreachable())
		return env, nil

	case *syntax.Goto:
		return env, fmt.Errorf("%w: goto %s survived structuring", ErrInternal, s.Label)

	default:
		return env, fmt.Errorf("%w: unknown statement %T", ErrInternal, s)
	}
}

// value lowers an expression that must leave a value behind, as the right
// side of a declaration or assignment to name.
func (t *translator) value(env Env, e syntax.Expr, name syntax.Id) error {
	yields, err := exprYields(env, e)
	if err != nil {
		return err
	}
	if !yields {
		return fmt.Errorf("%w: cannot bind %s to a call without a result", ErrNoValue, name)
	}
	return t.expr(env, e)
}

// expr lowers an expression, leaving its value on the stack (or nothing,
// for a call to a function without a result).
func (t *translator) expr(env Env, e syntax.Expr) error {
	switch e := e.(type) {
	case *syntax.AtomExpr:
		return t.atom(env, e.Atom)

	case *syntax.NewHT:
		return t.rtCallMono(env, "ht_new", e.Elem)

	case *syntax.NewArray:
		return t.rtCallMono(env, "array_new", e.Elem)

	case *syntax.HTSet:
		if err := t.atoms(env, e.HT, e.Field, e.Value); err != nil {
			return err
		}
		return t.rtCallMono(env, "ht_set", e.Elem)

	case *syntax.Push:
		if err := t.atoms(env, e.Array, e.Value); err != nil {
			return err
		}
		return t.rtCallMono(env, "array_push", e.Elem)

	case *syntax.CallDirect:
		for _, arg := range e.Args {
			if err := t.ident(env, arg); err != nil {
				return err
			}
		}
		b, err := env.Resolve(e.Fun)
		if err != nil {
			return err
		}
		if b.Kind == BindFunc {
			t.emit(wasm.Call(t.a.rtFns + b.Slot))
			return nil
		}
		// A call through a variable dispatches via the table, checked
		// against the variable's declared function type.
		if b.Type.Kind != syntax.KindFn {
			return fmt.Errorf("%w: %s has type %s", ErrNotCallable, e.Fun, b.Type)
		}
		if err := t.ident(env, e.Fun); err != nil {
			return err
		}
		t.emit(wasm.CallIndirect(t.a.module.AddType(wasmFuncType(b.Type))))
		return nil

	case *syntax.CallIndirect:
		if e.Type.Kind != syntax.KindFn {
			return fmt.Errorf("%w: %s declared as %s", ErrNotCallable, e.Fun, e.Type)
		}
		for _, arg := range e.Args {
			if err := t.ident(env, arg); err != nil {
				return err
			}
		}
		if err := t.ident(env, e.Fun); err != nil {
			return err
		}
		t.emit(wasm.CallIndirect(t.a.module.AddType(wasmFuncType(e.Type))))
		return nil

	case *syntax.ToString:
		if err := t.atom(env, e.Value); err != nil {
			return err
		}
		return t.rtCall("string_from_str")

	default:
		return fmt.Errorf("%w: unknown expression %T", ErrInternal, e)
	}
}

// atom lowers a side-effect-free leaf, leaving exactly one value on the
// stack.
func (t *translator) atom(env Env, a syntax.Atom) error {
	switch a := a.(type) {
	case *syntax.Lit:
		switch a.Kind {
		case syntax.IntLit:
			t.emit(wasm.I32Const(a.I32))
		case syntax.FloatLit:
			t.emit(wasm.F64Const(a.F64))
		case syntax.BoolLit:
			t.emit(wasm.I32Const(boolConst(a.Bool)))
		case syntax.InternedLit:
			// The blob's load address plus the literal's offset.
			t.emit(wasm.GlobalGet(stringsGlobalIndex), wasm.I32Const(int32(a.Addr)), wasm.Op1(wasm.OpI32Add))
		case syntax.StrLit:
			return fmt.Errorf("%w: string literal %q survived interning", ErrInternal, a.Str)
		default:
			return fmt.Errorf("%w: unknown literal kind %d", ErrInternal, a.Kind)
		}
		return nil

	case *syntax.Ident:
		return t.ident(env, a.Name)

	case *syntax.HTGet:
		if err := t.atoms(env, a.HT, a.Field); err != nil {
			return err
		}
		return t.rtCallMono(env, "ht_get", a.Elem)

	case *syntax.Index:
		if err := t.atoms(env, a.Array, a.Index); err != nil {
			return err
		}
		return t.rtCallMono(env, "array_index", a.Elem)

	case *syntax.StringLen:
		if err := t.atom(env, a.Value); err != nil {
			return err
		}
		return t.rtCall("string_len")

	case *syntax.Binary:
		if err := t.atoms(env, a.Left, a.Right); err != nil {
			return err
		}
		if in, ok := binaryInstr(a.Op); ok {
			t.emit(in)
			return nil
		}
		name := anyBinaryFn(a.Op)
		if name == "" {
			return fmt.Errorf("%w: unknown binary operator %d", ErrInternal, a.Op)
		}
		return t.rtCall(name)

	case *syntax.Unary:
		if err := t.atom(env, a.Operand); err != nil {
			return err
		}
		switch a.Op {
		case syntax.F64Neg:
			t.emit(wasm.Op1(wasm.OpF64Neg))
		case syntax.I32Eqz:
			t.emit(wasm.Op1(wasm.OpI32Eqz))
		case syntax.AnyNeg:
			return t.rtCall("any_neg")
		default:
			return fmt.Errorf("%w: unknown unary operator %d", ErrInternal, a.Op)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown atom %T", ErrInternal, a)
	}
}

func (t *translator) atoms(env Env, as ...syntax.Atom) error {
	for _, a := range as {
		if err := t.atom(env, a); err != nil {
			return err
		}
	}
	return nil
}

// ident pushes the value of a bound name: locals and globals read their
// cell, functions evaluate to their call-table index.
func (t *translator) ident(env Env, name syntax.Id) error {
	b, err := env.Resolve(name)
	if err != nil {
		return err
	}
	switch b.Kind {
	case BindLocal:
		t.emit(wasm.LocalGet(b.Slot))
	case BindGlobal:
		t.emit(wasm.GlobalGet(b.Slot))
	case BindFunc:
		t.emit(wasm.I32Const(int32(b.Slot)))
	}
	return nil
}

func (t *translator) rtCall(name string) error {
	idx, err := t.a.rtIndex(name)
	if err != nil {
		return err
	}
	t.emit(wasm.Call(idx))
	return nil
}

// rtCallMono calls the runtime entry point for op specialized to elem.
func (t *translator) rtCallMono(env Env, op string, elem syntax.Type) error {
	return t.rtCall(monoName(op, elem))
}

// exprYields reports whether e leaves a value on the stack. Only calls to
// functions without a result yield nothing.
func exprYields(env Env, e syntax.Expr) (bool, error) {
	switch e := e.(type) {
	case *syntax.CallDirect:
		b, err := env.Resolve(e.Fun)
		if err != nil {
			return false, err
		}
		if b.Type.Kind != syntax.KindFn {
			return false, fmt.Errorf("%w: %s has type %s", ErrNotCallable, e.Fun, b.Type)
		}
		return b.Type.Result != nil, nil
	case *syntax.CallIndirect:
		return e.Type.Result != nil, nil
	default:
		return true, nil
	}
}

// ---------------------------------------------------------------------------
// Type and operator lowering
// ---------------------------------------------------------------------------

// valType maps a language type onto the machine: floats stay floats,
// everything else is an i32 scalar or pointer.
func valType(t syntax.Type) wasm.ValType {
	if t.Kind == syntax.KindF64 {
		return wasm.F64
	}
	return wasm.I32
}

func wasmFuncType(t syntax.Type) wasm.FuncType {
	var ft wasm.FuncType
	for _, p := range t.Params {
		ft.Params = append(ft.Params, valType(p))
	}
	if t.Result != nil {
		ft.Results = []wasm.ValType{valType(*t.Result)}
	}
	return ft
}

func boolConst(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// binaryInstr maps a typed operator onto its single instruction. Operators
// on dynamic values have no instruction and fall through to runtime calls.
func binaryInstr(op syntax.BinaryOp) (wasm.Instr, bool) {
	switch op {
	case syntax.I32Add:
		return wasm.Op1(wasm.OpI32Add), true
	case syntax.I32Sub:
		return wasm.Op1(wasm.OpI32Sub), true
	case syntax.I32Mul:
		return wasm.Op1(wasm.OpI32Mul), true
	case syntax.I32Eq:
		return wasm.Op1(wasm.OpI32Eq), true
	case syntax.I32Ne:
		return wasm.Op1(wasm.OpI32Ne), true
	case syntax.I32GT:
		return wasm.Op1(wasm.OpI32GtS), true
	case syntax.I32LT:
		return wasm.Op1(wasm.OpI32LtS), true
	case syntax.I32Ge:
		return wasm.Op1(wasm.OpI32GeS), true
	case syntax.I32Le:
		return wasm.Op1(wasm.OpI32LeS), true
	case syntax.I32And:
		return wasm.Op1(wasm.OpI32And), true
	case syntax.I32Or:
		return wasm.Op1(wasm.OpI32Or), true
	case syntax.I32Shl:
		return wasm.Op1(wasm.OpI32Shl), true
	case syntax.F64Add:
		return wasm.Op1(wasm.OpF64Add), true
	case syntax.F64Sub:
		return wasm.Op1(wasm.OpF64Sub), true
	case syntax.F64Mul:
		return wasm.Op1(wasm.OpF64Mul), true
	case syntax.F64Div:
		return wasm.Op1(wasm.OpF64Div), true
	case syntax.F64Eq:
		return wasm.Op1(wasm.OpF64Eq), true
	case syntax.PtrEq:
		// Pointers are i32 addresses; identity is address equality.
		return wasm.Op1(wasm.OpI32Eq), true
	default:
		return wasm.Instr{}, false
	}
}

// anyBinaryFn names the runtime fallback for a dynamic operator.
func anyBinaryFn(op syntax.BinaryOp) string {
	switch op {
	case syntax.AnyPlus:
		return "any_plus"
	case syntax.AnyMinus:
		return "any_minus"
	case syntax.AnyTimes:
		return "any_times"
	case syntax.AnyOver:
		return "any_over"
	case syntax.AnyStrictEq:
		return "any_strict_eq"
	default:
		return ""
	}
}
