package wasm

import "strings"

// ---------------------------------------------------------------------------
// Module model: an in-memory WebAssembly module built by the compiler and
// serialized by the encoder. Instructions are kept as typed values rather
// than raw bytes so the assembler's output can be inspected before encoding.
// ---------------------------------------------------------------------------

// ValType is a value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return "valtype(?)"
}

// BlockType is the result type of a block, loop, or if.
type BlockType byte

const (
	// BlockVoid is the empty block type.
	BlockVoid BlockType = 0x40
)

// BlockOf returns the block type producing a single value.
func BlockOf(v ValType) BlockType { return BlockType(v) }

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType // zero or one entry
}

// Key returns a canonical string for signature deduplication.
func (t FuncType) Key() string {
	var sb strings.Builder
	for _, p := range t.Params {
		sb.WriteString(p.String())
		sb.WriteByte(',')
	}
	sb.WriteString("->")
	for _, r := range t.Results {
		sb.WriteString(r.String())
	}
	return sb.String()
}

// Equal reports whether two signatures are identical.
func (t FuncType) Equal(u FuncType) bool {
	if len(t.Params) != len(u.Params) || len(t.Results) != len(u.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != u.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != u.Results[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instr is one instruction with its immediate. Which immediate field is
// meaningful depends on the opcode's ImmKind.
type Instr struct {
	Op    Opcode
	N     uint32    // index immediate: labels, locals, globals, functions, types
	I32V  int32     // i32.const immediate
	F64V  float64   // f64.const immediate
	Block BlockType // block/loop/if immediate
}

// Instruction constructors, named after the text-format mnemonics.

func Unreachable() Instr { return Instr{Op: OpUnreachable} }

func Nop() Instr { return Instr{Op: OpNop} }

func Block(bt BlockType) Instr { return Instr{Op: OpBlock, Block: bt} }

func Loop(bt BlockType) Instr { return Instr{Op: OpLoop, Block: bt} }

func If(bt BlockType) Instr { return Instr{Op: OpIf, Block: bt} }

func Else() Instr { return Instr{Op: OpElse} }

func End() Instr { return Instr{Op: OpEnd} }

func Br(depth uint32) Instr { return Instr{Op: OpBr, N: depth} }

func BrIf(depth uint32) Instr { return Instr{Op: OpBrIf, N: depth} }

func Return() Instr { return Instr{Op: OpReturn} }

func Call(fn uint32) Instr { return Instr{Op: OpCall, N: fn} }

func CallIndirect(ty uint32) Instr { return Instr{Op: OpCallIndirect, N: ty} }

func Drop() Instr { return Instr{Op: OpDrop} }

func LocalGet(n uint32) Instr { return Instr{Op: OpLocalGet, N: n} }

func LocalSet(n uint32) Instr { return Instr{Op: OpLocalSet, N: n} }

func LocalTee(n uint32) Instr { return Instr{Op: OpLocalTee, N: n} }

func GlobalGet(n uint32) Instr { return Instr{Op: OpGlobalGet, N: n} }

func GlobalSet(n uint32) Instr { return Instr{Op: OpGlobalSet, N: n} }

func I32Const(v int32) Instr { return Instr{Op: OpI32Const, I32V: v} }

func F64Const(v float64) Instr { return Instr{Op: OpF64Const, F64V: v} }

// Op1 returns a bare instruction with no immediate.
func Op1(op Opcode) Instr { return Instr{Op: op} }

// ---------------------------------------------------------------------------
// Module sections
// ---------------------------------------------------------------------------

// ImportKind discriminates import and export entries.
type ImportKind byte

const (
	KindFunc   ImportKind = 0x00
	KindTable  ImportKind = 0x01
	KindMemory ImportKind = 0x02
	KindGlobal ImportKind = 0x03
)

func (k ImportKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	}
	return "kind(?)"
}

// Import is one import entry. Exactly one of the payload fields applies,
// selected by Kind.
type Import struct {
	Module string
	Name   string
	Kind   ImportKind

	TypeIndex  uint32  // KindFunc
	MemMin     uint32  // KindMemory
	GlobalType ValType // KindGlobal
	GlobalMut  bool    // KindGlobal
}

// Func is one defined function: its signature index, extra locals beyond
// the parameters, and the body including the trailing end instruction.
type Func struct {
	TypeIndex uint32
	Locals    []ValType
	Body      []Instr
}

// Table is the module's single function table. Elems lists function
// indices placed starting at table offset 0.
type Table struct {
	Min   uint32
	Elems []uint32
}

// Global is one defined global with a constant initializer.
type Global struct {
	Type    ValType
	Mutable bool
	Init    []Instr // constant expression, without the trailing end
}

// Export is one export entry.
type Export struct {
	Name  string
	Kind  ImportKind
	Index uint32
}

// DataSeg is one data segment. The offset is a constant expression,
// typically a global.get of an imported base address.
type DataSeg struct {
	Offset []Instr // constant expression, without the trailing end
	Bytes  []byte
}

// Module is a complete module ready for encoding.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Table   *Table
	Globals []Global
	Exports []Export
	Data    []DataSeg
}

// ImportedFuncs counts imported functions, which occupy the low function
// index range.
func (m *Module) ImportedFuncs() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// ImportedGlobals counts imported globals, which occupy the low global
// index range.
func (m *Module) ImportedGlobals() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == KindGlobal {
			n++
		}
	}
	return n
}

// AddType returns the index of ty in the type section, appending it if no
// identical signature is present.
func (m *Module) AddType(ty FuncType) uint32 {
	for i, existing := range m.Types {
		if existing.Equal(ty) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ty)
	return uint32(len(m.Types) - 1)
}
