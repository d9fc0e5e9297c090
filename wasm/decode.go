package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Binary decoding: parses a module back into the in-memory model. Used to
// validate emitted modules structurally and by the disassembling tools.
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic       = errors.New("invalid magic number: expected \\0asm")
	ErrUnsupportedVersion = errors.New("unsupported module version")
	ErrUnexpectedEOF      = errors.New("unexpected end of module data")
	ErrMalformedSection   = errors.New("malformed section")
)

// Decode parses a binary module.
func Decode(data []byte) (*Module, error) {
	if len(data) < len(moduleMagic)+len(moduleVersion) {
		return nil, ErrUnexpectedEOF
	}
	if !bytes.Equal(data[:4], moduleMagic) {
		return nil, ErrInvalidMagic
	}
	if !bytes.Equal(data[4:8], moduleVersion) {
		return nil, ErrUnsupportedVersion
	}

	r := &reader{data: data, offset: 8}
	m := &Module{}
	var funcTypes []uint32

	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.varU32()
		if err != nil {
			return nil, err
		}
		body, err := r.take(int(size))
		if err != nil {
			return nil, err
		}
		sr := &reader{data: body}
		switch id {
		case secType:
			err = decodeTypeSection(sr, m)
		case secImport:
			err = decodeImportSection(sr, m)
		case secFunction:
			funcTypes, err = decodeFunctionSection(sr)
		case secTable:
			err = decodeTableSection(sr, m)
		case secGlobal:
			err = decodeGlobalSection(sr, m)
		case secExport:
			err = decodeExportSection(sr, m)
		case secElement:
			err = decodeElementSection(sr, m)
		case secCode:
			err = decodeCodeSection(sr, m, funcTypes)
		case secData:
			err = decodeDataSection(sr, m)
		default:
			// custom or unhandled section, skip
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}
	return m, nil
}

func decodeTypeSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		if tag != funcTypeTag {
			return fmt.Errorf("%w: type tag 0x%02X", ErrMalformedSection, tag)
		}
		var ty FuncType
		if ty.Params, err = r.valTypes(); err != nil {
			return err
		}
		if ty.Results, err = r.valTypes(); err != nil {
			return err
		}
		m.Types = append(m.Types, ty)
	}
	return nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var imp Import
		if imp.Module, err = r.name(); err != nil {
			return err
		}
		if imp.Name, err = r.name(); err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp.Kind = ImportKind(kind)
		switch imp.Kind {
		case KindFunc:
			if imp.TypeIndex, err = r.varU32(); err != nil {
				return err
			}
		case KindMemory:
			if _, imp.MemMin, _, err = r.limits(); err != nil {
				return err
			}
		case KindGlobal:
			ty, err := r.byte()
			if err != nil {
				return err
			}
			mut, err := r.byte()
			if err != nil {
				return err
			}
			imp.GlobalType = ValType(ty)
			imp.GlobalMut = mut == 0x01
		case KindTable:
			if _, err = r.byte(); err != nil { // elem type
				return err
			}
			if _, _, _, err = r.limits(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: import kind 0x%02X", ErrMalformedSection, kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(r *reader) ([]uint32, error) {
	count, err := r.varU32()
	if err != nil {
		return nil, err
	}
	types := make([]uint32, count)
	for i := range types {
		if types[i], err = r.varU32(); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func decodeTableSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("%w: expected one table, got %d", ErrMalformedSection, count)
	}
	if _, err = r.byte(); err != nil { // elem type
		return err
	}
	_, min, _, err := r.limits()
	if err != nil {
		return err
	}
	m.Table = &Table{Min: min}
	return nil
}

func decodeGlobalSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		ty, err := r.byte()
		if err != nil {
			return err
		}
		mut, err := r.byte()
		if err != nil {
			return err
		}
		init, err := r.expr()
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: ValType(ty), Mutable: mut == 0x01, Init: init})
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var e Export
		if e.Name, err = r.name(); err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		e.Kind = ImportKind(kind)
		if e.Index, err = r.varU32(); err != nil {
			return err
		}
		m.Exports = append(m.Exports, e)
	}
	return nil
}

func decodeElementSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err = r.varU32(); err != nil { // table index
			return err
		}
		if _, err = r.expr(); err != nil { // offset
			return err
		}
		n, err := r.varU32()
		if err != nil {
			return err
		}
		elems := make([]uint32, n)
		for j := range elems {
			if elems[j], err = r.varU32(); err != nil {
				return err
			}
		}
		if m.Table == nil {
			m.Table = &Table{Min: n}
		}
		m.Table.Elems = append(m.Table.Elems, elems...)
	}
	return nil
}

func decodeCodeSection(r *reader, m *Module, funcTypes []uint32) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	if int(count) != len(funcTypes) {
		return fmt.Errorf("%w: %d code entries for %d functions", ErrMalformedSection, count, len(funcTypes))
	}
	for i := uint32(0); i < count; i++ {
		size, err := r.varU32()
		if err != nil {
			return err
		}
		body, err := r.take(int(size))
		if err != nil {
			return err
		}
		br := &reader{data: body}
		f := Func{TypeIndex: funcTypes[i]}
		groups, err := br.varU32()
		if err != nil {
			return err
		}
		for g := uint32(0); g < groups; g++ {
			n, err := br.varU32()
			if err != nil {
				return err
			}
			ty, err := br.byte()
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				f.Locals = append(f.Locals, ValType(ty))
			}
		}
		for !br.done() {
			inst, err := br.instr()
			if err != nil {
				return err
			}
			f.Body = append(f.Body, inst)
		}
		m.Funcs = append(m.Funcs, f)
	}
	return nil
}

func decodeDataSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err = r.varU32(); err != nil { // memory index
			return err
		}
		offset, err := r.expr()
		if err != nil {
			return err
		}
		n, err := r.varU32()
		if err != nil {
			return err
		}
		b, err := r.take(int(n))
		if err != nil {
			return err
		}
		m.Data = append(m.Data, DataSeg{Offset: offset, Bytes: append([]byte{}, b...)})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Low-level reader
// ---------------------------------------------------------------------------

type reader struct {
	data   []byte
	offset int
}

func (r *reader) done() bool {
	return r.offset >= len(r.data)
}

func (r *reader) byte() (byte, error) {
	if r.offset >= len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *reader) varU32() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, fmt.Errorf("%w: LEB128 too long", ErrMalformedSection)
		}
	}
}

func (r *reader) varS32() (int32, error) {
	var result int32
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= int32(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
		if shift >= 35 {
			return 0, fmt.Errorf("%w: LEB128 too long", ErrMalformedSection)
		}
	}
}

func (r *reader) name() (string, error) {
	n, err := r.varU32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) valTypes() ([]ValType, error) {
	n, err := r.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, n)
	for i := range out {
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		out[i] = ValType(b)
	}
	return out, nil
}

func (r *reader) limits() (hasMax bool, min, max uint32, err error) {
	flag, err := r.byte()
	if err != nil {
		return false, 0, 0, err
	}
	min, err = r.varU32()
	if err != nil {
		return false, 0, 0, err
	}
	if flag == 0x01 {
		max, err = r.varU32()
		if err != nil {
			return false, 0, 0, err
		}
		return true, min, max, nil
	}
	return false, min, 0, nil
}

// expr reads instructions up to and excluding the terminating end opcode.
func (r *reader) expr() ([]Instr, error) {
	var out []Instr
	for {
		inst, err := r.instr()
		if err != nil {
			return nil, err
		}
		if inst.Op == OpEnd {
			return out, nil
		}
		out = append(out, inst)
	}
}

func (r *reader) instr() (Instr, error) {
	op, err := r.byte()
	if err != nil {
		return Instr{}, err
	}
	inst := Instr{Op: Opcode(op)}
	info, ok := inst.Op.Info()
	if !ok {
		return Instr{}, fmt.Errorf("%w: unknown opcode 0x%02X", ErrMalformedSection, op)
	}
	switch info.Imm {
	case ImmNone:
	case ImmBlockType:
		b, err := r.byte()
		if err != nil {
			return Instr{}, err
		}
		inst.Block = BlockType(b)
	case ImmIndex:
		if inst.N, err = r.varU32(); err != nil {
			return Instr{}, err
		}
	case ImmI32:
		if inst.I32V, err = r.varS32(); err != nil {
			return Instr{}, err
		}
	case ImmF64:
		b, err := r.take(8)
		if err != nil {
			return Instr{}, err
		}
		inst.F64V = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case ImmCallIndirect:
		if inst.N, err = r.varU32(); err != nil {
			return Instr{}, err
		}
		if _, err = r.byte(); err != nil { // table index
			return Instr{}, err
		}
	}
	return inst, nil
}
