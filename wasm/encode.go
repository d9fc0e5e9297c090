package wasm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Binary encoding
// ---------------------------------------------------------------------------

// Module header.
var (
	moduleMagic   = []byte{0x00, 0x61, 0x73, 0x6D} // "\0asm"
	moduleVersion = []byte{0x01, 0x00, 0x00, 0x00}
)

// Section IDs.
const (
	secType     byte = 1
	secImport   byte = 2
	secFunction byte = 3
	secTable    byte = 4
	secMemory   byte = 5
	secGlobal   byte = 6
	secExport   byte = 7
	secStart    byte = 8
	secElement  byte = 9
	secCode     byte = 10
	secData     byte = 11
)

const (
	funcTypeTag  byte = 0x60
	elemTypeFunc byte = 0x70
)

// Encode serializes the module to its binary form.
func Encode(m *Module) ([]byte, error) {
	out := append([]byte{}, moduleMagic...)
	out = append(out, moduleVersion...)

	if len(m.Types) > 0 {
		out = appendSection(out, secType, encodeTypeSection(m.Types))
	}
	if len(m.Imports) > 0 {
		out = appendSection(out, secImport, encodeImportSection(m.Imports))
	}
	if len(m.Funcs) > 0 {
		out = appendSection(out, secFunction, encodeFunctionSection(m.Funcs))
	}
	if m.Table != nil {
		out = appendSection(out, secTable, encodeTableSection(m.Table))
	}
	if len(m.Globals) > 0 {
		payload, err := encodeGlobalSection(m.Globals)
		if err != nil {
			return nil, err
		}
		out = appendSection(out, secGlobal, payload)
	}
	if len(m.Exports) > 0 {
		out = appendSection(out, secExport, encodeExportSection(m.Exports))
	}
	if m.Table != nil && len(m.Table.Elems) > 0 {
		out = appendSection(out, secElement, encodeElementSection(m.Table))
	}
	if len(m.Funcs) > 0 {
		payload, err := encodeCodeSection(m.Funcs)
		if err != nil {
			return nil, err
		}
		out = appendSection(out, secCode, payload)
	}
	if len(m.Data) > 0 {
		payload, err := encodeDataSection(m.Data)
		if err != nil {
			return nil, err
		}
		out = appendSection(out, secData, payload)
	}
	return out, nil
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendVarU32(out, uint32(len(payload)))
	return append(out, payload...)
}

func encodeTypeSection(types []FuncType) []byte {
	buf := appendVarU32(nil, uint32(len(types)))
	for _, ty := range types {
		buf = append(buf, funcTypeTag)
		buf = appendVarU32(buf, uint32(len(ty.Params)))
		for _, p := range ty.Params {
			buf = append(buf, byte(p))
		}
		buf = appendVarU32(buf, uint32(len(ty.Results)))
		for _, r := range ty.Results {
			buf = append(buf, byte(r))
		}
	}
	return buf
}

func encodeImportSection(imports []Import) []byte {
	buf := appendVarU32(nil, uint32(len(imports)))
	for _, imp := range imports {
		buf = appendName(buf, imp.Module)
		buf = appendName(buf, imp.Name)
		buf = append(buf, byte(imp.Kind))
		switch imp.Kind {
		case KindFunc:
			buf = appendVarU32(buf, imp.TypeIndex)
		case KindMemory:
			buf = append(buf, 0x00) // limits: min only
			buf = appendVarU32(buf, imp.MemMin)
		case KindGlobal:
			buf = append(buf, byte(imp.GlobalType))
			buf = append(buf, mutFlag(imp.GlobalMut))
		case KindTable:
			buf = append(buf, elemTypeFunc)
			buf = append(buf, 0x00)
			buf = appendVarU32(buf, 0)
		}
	}
	return buf
}

func encodeFunctionSection(funcs []Func) []byte {
	buf := appendVarU32(nil, uint32(len(funcs)))
	for _, f := range funcs {
		buf = appendVarU32(buf, f.TypeIndex)
	}
	return buf
}

func encodeTableSection(t *Table) []byte {
	buf := appendVarU32(nil, 1)
	buf = append(buf, elemTypeFunc)
	buf = append(buf, 0x00) // limits: min only
	return appendVarU32(buf, t.Min)
}

func encodeGlobalSection(globals []Global) ([]byte, error) {
	buf := appendVarU32(nil, uint32(len(globals)))
	for i, g := range globals {
		buf = append(buf, byte(g.Type))
		buf = append(buf, mutFlag(g.Mutable))
		var err error
		buf, err = appendExpr(buf, g.Init)
		if err != nil {
			return nil, fmt.Errorf("global %d: %w", i, err)
		}
	}
	return buf, nil
}

func encodeExportSection(exports []Export) []byte {
	buf := appendVarU32(nil, uint32(len(exports)))
	for _, e := range exports {
		buf = appendName(buf, e.Name)
		buf = append(buf, byte(e.Kind))
		buf = appendVarU32(buf, e.Index)
	}
	return buf
}

func encodeElementSection(t *Table) []byte {
	buf := appendVarU32(nil, 1) // one segment
	buf = appendVarU32(buf, 0)  // table index
	buf = appendInstrRaw(buf, I32Const(0))
	buf = append(buf, byte(OpEnd))
	buf = appendVarU32(buf, uint32(len(t.Elems)))
	for _, fn := range t.Elems {
		buf = appendVarU32(buf, fn)
	}
	return buf
}

func encodeCodeSection(funcs []Func) ([]byte, error) {
	buf := appendVarU32(nil, uint32(len(funcs)))
	for i, f := range funcs {
		body, err := encodeFuncBody(&f)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		buf = appendVarU32(buf, uint32(len(body)))
		buf = append(buf, body...)
	}
	return buf, nil
}

func encodeFuncBody(f *Func) ([]byte, error) {
	groups := groupLocals(f.Locals)
	buf := appendVarU32(nil, uint32(len(groups)))
	for _, g := range groups {
		buf = appendVarU32(buf, g.count)
		buf = append(buf, byte(g.ty))
	}
	for _, inst := range f.Body {
		var err error
		buf, err = appendInstr(buf, inst)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeDataSection(segs []DataSeg) ([]byte, error) {
	buf := appendVarU32(nil, uint32(len(segs)))
	for i, seg := range segs {
		buf = appendVarU32(buf, 0) // memory index
		var err error
		buf, err = appendExpr(buf, seg.Offset)
		if err != nil {
			return nil, fmt.Errorf("data segment %d: %w", i, err)
		}
		buf = appendVarU32(buf, uint32(len(seg.Bytes)))
		buf = append(buf, seg.Bytes...)
	}
	return buf, nil
}

// appendExpr encodes a constant expression and its terminating end opcode.
func appendExpr(buf []byte, instrs []Instr) ([]byte, error) {
	for _, inst := range instrs {
		var err error
		buf, err = appendInstr(buf, inst)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, byte(OpEnd)), nil
}

type localGroup struct {
	count uint32
	ty    ValType
}

// groupLocals compresses consecutive locals of one type into run-length
// entries, as the code section requires.
func groupLocals(locals []ValType) []localGroup {
	var groups []localGroup
	for _, ty := range locals {
		if n := len(groups); n > 0 && groups[n-1].ty == ty {
			groups[n-1].count++
			continue
		}
		groups = append(groups, localGroup{count: 1, ty: ty})
	}
	return groups
}

func appendInstr(buf []byte, inst Instr) ([]byte, error) {
	info, ok := inst.Op.Info()
	if !ok {
		return nil, fmt.Errorf("wasm: cannot encode unknown opcode 0x%02X", byte(inst.Op))
	}
	buf = append(buf, byte(inst.Op))
	switch info.Imm {
	case ImmNone:
	case ImmBlockType:
		buf = append(buf, byte(inst.Block))
	case ImmIndex:
		buf = appendVarU32(buf, inst.N)
	case ImmI32:
		buf = appendVarS32(buf, inst.I32V)
	case ImmF64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(inst.F64V))
		buf = append(buf, b[:]...)
	case ImmCallIndirect:
		buf = appendVarU32(buf, inst.N)
		buf = append(buf, 0x00) // table index
	}
	return buf, nil
}

// appendInstrRaw is appendInstr for instructions known to be encodable.
func appendInstrRaw(buf []byte, inst Instr) []byte {
	out, err := appendInstr(buf, inst)
	if err != nil {
		panic(err)
	}
	return out
}

func appendName(buf []byte, s string) []byte {
	buf = appendVarU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func mutFlag(mutable bool) byte {
	if mutable {
		return 0x01
	}
	return 0x00
}

// appendVarU32 encodes an unsigned LEB128 value.
func appendVarU32(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// appendVarS32 encodes a signed LEB128 value.
func appendVarS32(buf []byte, v int32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
