package wasm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions (WebAssembly MVP, the subset the compiler emits)
// ---------------------------------------------------------------------------

// Opcode represents a single instruction opcode.
type Opcode byte

// Control Flow
const (
	OpUnreachable  Opcode = 0x00 // trap immediately
	OpNop          Opcode = 0x01 // no operation
	OpBlock        Opcode = 0x02 // begin block (blocktype)
	OpLoop         Opcode = 0x03 // begin loop (blocktype)
	OpIf           Opcode = 0x04 // begin conditional (blocktype)
	OpElse         Opcode = 0x05 // else arm
	OpEnd          Opcode = 0x0B // end block/loop/if/function
	OpBr           Opcode = 0x0C // branch (label depth)
	OpBrIf         Opcode = 0x0D // conditional branch (label depth)
	OpReturn       Opcode = 0x0F // return from function
	OpCall         Opcode = 0x10 // call function (function index)
	OpCallIndirect Opcode = 0x11 // call through table (type index, table 0)
)

// Parametric
const (
	OpDrop Opcode = 0x1A // discard top of stack
)

// Variable Access
const (
	OpLocalGet  Opcode = 0x20 // push local (local index)
	OpLocalSet  Opcode = 0x21 // pop into local (local index)
	OpLocalTee  Opcode = 0x22 // store local, keep value (local index)
	OpGlobalGet Opcode = 0x23 // push global (global index)
	OpGlobalSet Opcode = 0x24 // pop into global (global index)
)

// Constants
const (
	OpI32Const Opcode = 0x41 // push i32 constant (signed LEB128)
	OpF64Const Opcode = 0x44 // push f64 constant (8 bytes, little endian)
)

// i32 Comparison
const (
	OpI32Eqz Opcode = 0x45 // compare with zero
	OpI32Eq  Opcode = 0x46 // equal
	OpI32Ne  Opcode = 0x47 // not equal
	OpI32LtS Opcode = 0x48 // signed less-than
	OpI32GtS Opcode = 0x4A // signed greater-than
	OpI32LeS Opcode = 0x4C // signed less-or-equal
	OpI32GeS Opcode = 0x4E // signed greater-or-equal
)

// f64 Comparison
const (
	OpF64Eq Opcode = 0x61 // equal
)

// i32 Arithmetic
const (
	OpI32Add  Opcode = 0x6A // add
	OpI32Sub  Opcode = 0x6B // subtract
	OpI32Mul  Opcode = 0x6C // multiply
	OpI32DivS Opcode = 0x6D // signed divide
	OpI32And  Opcode = 0x71 // bitwise and
	OpI32Or   Opcode = 0x72 // bitwise or
	OpI32Xor  Opcode = 0x73 // bitwise xor
	OpI32Shl  Opcode = 0x74 // shift left
	OpI32ShrS Opcode = 0x75 // signed shift right
)

// f64 Arithmetic
const (
	OpF64Neg Opcode = 0x9A // negate
	OpF64Add Opcode = 0xA0 // add
	OpF64Sub Opcode = 0xA1 // subtract
	OpF64Mul Opcode = 0xA2 // multiply
	OpF64Div Opcode = 0xA3 // divide
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// ImmKind describes the immediate operand an opcode carries in the binary
// encoding.
type ImmKind int

const (
	ImmNone         ImmKind = iota
	ImmBlockType            // one blocktype byte
	ImmIndex                // unsigned LEB128 index (label, local, global, function)
	ImmI32                  // signed LEB128 constant
	ImmF64                  // 8-byte little-endian float
	ImmCallIndirect         // unsigned LEB128 type index + table byte (0x00)
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string  // text-format mnemonic
	Imm  ImmKind // immediate operand kind
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Control flow
	OpUnreachable:  {"unreachable", ImmNone},
	OpNop:          {"nop", ImmNone},
	OpBlock:        {"block", ImmBlockType},
	OpLoop:         {"loop", ImmBlockType},
	OpIf:           {"if", ImmBlockType},
	OpElse:         {"else", ImmNone},
	OpEnd:          {"end", ImmNone},
	OpBr:           {"br", ImmIndex},
	OpBrIf:         {"br_if", ImmIndex},
	OpReturn:       {"return", ImmNone},
	OpCall:         {"call", ImmIndex},
	OpCallIndirect: {"call_indirect", ImmCallIndirect},

	// Parametric
	OpDrop: {"drop", ImmNone},

	// Variable access
	OpLocalGet:  {"local.get", ImmIndex},
	OpLocalSet:  {"local.set", ImmIndex},
	OpLocalTee:  {"local.tee", ImmIndex},
	OpGlobalGet: {"global.get", ImmIndex},
	OpGlobalSet: {"global.set", ImmIndex},

	// Constants
	OpI32Const: {"i32.const", ImmI32},
	OpF64Const: {"f64.const", ImmF64},

	// i32 comparison
	OpI32Eqz: {"i32.eqz", ImmNone},
	OpI32Eq:  {"i32.eq", ImmNone},
	OpI32Ne:  {"i32.ne", ImmNone},
	OpI32LtS: {"i32.lt_s", ImmNone},
	OpI32GtS: {"i32.gt_s", ImmNone},
	OpI32LeS: {"i32.le_s", ImmNone},
	OpI32GeS: {"i32.ge_s", ImmNone},

	// f64 comparison
	OpF64Eq: {"f64.eq", ImmNone},

	// i32 arithmetic
	OpI32Add:  {"i32.add", ImmNone},
	OpI32Sub:  {"i32.sub", ImmNone},
	OpI32Mul:  {"i32.mul", ImmNone},
	OpI32DivS: {"i32.div_s", ImmNone},
	OpI32And:  {"i32.and", ImmNone},
	OpI32Or:   {"i32.or", ImmNone},
	OpI32Xor:  {"i32.xor", ImmNone},
	OpI32Shl:  {"i32.shl", ImmNone},
	OpI32ShrS: {"i32.shr_s", ImmNone},

	// f64 arithmetic
	OpF64Neg: {"f64.neg", ImmNone},
	OpF64Add: {"f64.add", ImmNone},
	OpF64Sub: {"f64.sub", ImmNone},
	OpF64Mul: {"f64.mul", ImmNone},
	OpF64Div: {"f64.div", ImmNone},
}

// Info returns metadata for an opcode.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("opcode(0x%02X)", byte(op))
}
