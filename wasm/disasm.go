package wasm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the module: type and
// import tables, then each function body with block-structured indentation.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	if len(m.Types) > 0 {
		sb.WriteString("; Types:\n")
		for i, ty := range m.Types {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, formatFuncType(ty)))
		}
		sb.WriteString("\n")
	}

	if len(m.Imports) > 0 {
		sb.WriteString("; Imports:\n")
		funcIdx := 0
		for _, imp := range m.Imports {
			switch imp.Kind {
			case KindFunc:
				sb.WriteString(fmt.Sprintf(";   [%3d] func %s.%s (type %d)\n",
					funcIdx, imp.Module, imp.Name, imp.TypeIndex))
				funcIdx++
			case KindMemory:
				sb.WriteString(fmt.Sprintf(";   memory %s.%s (min %d)\n", imp.Module, imp.Name, imp.MemMin))
			case KindGlobal:
				sb.WriteString(fmt.Sprintf(";   global %s.%s %s mutable=%v\n",
					imp.Module, imp.Name, imp.GlobalType, imp.GlobalMut))
			case KindTable:
				sb.WriteString(fmt.Sprintf(";   table %s.%s\n", imp.Module, imp.Name))
			}
		}
		sb.WriteString("\n")
	}

	if m.Table != nil {
		sb.WriteString(fmt.Sprintf("; Table: min=%d elems=%v\n\n", m.Table.Min, m.Table.Elems))
	}

	if len(m.Globals) > 0 {
		sb.WriteString("; Globals:\n")
		for i, g := range m.Globals {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s mutable=%v = %s\n",
				i, g.Type, g.Mutable, formatExpr(g.Init)))
		}
		sb.WriteString("\n")
	}

	imported := int(m.ImportedFuncs())
	for i, f := range m.Funcs {
		sb.WriteString(fmt.Sprintf("func[%d] (type %d)", imported+i, f.TypeIndex))
		if len(f.Locals) > 0 {
			names := make([]string, len(f.Locals))
			for j, l := range f.Locals {
				names[j] = l.String()
			}
			sb.WriteString(fmt.Sprintf(" locals=[%s]", strings.Join(names, " ")))
		}
		sb.WriteString("\n")
		writeBody(&sb, f.Body)
		sb.WriteString("\n")
	}

	if len(m.Exports) > 0 {
		sb.WriteString("; Exports:\n")
		for _, e := range m.Exports {
			sb.WriteString(fmt.Sprintf(";   %s %q -> %d\n", e.Kind, e.Name, e.Index))
		}
	}

	if len(m.Data) > 0 {
		sb.WriteString("; Data:\n")
		for i, seg := range m.Data {
			sb.WriteString(fmt.Sprintf(";   [%3d] offset %s, %d bytes\n",
				i, formatExpr(seg.Offset), len(seg.Bytes)))
		}
	}

	return sb.String()
}

func writeBody(sb *strings.Builder, body []Instr) {
	depth := 1
	for _, inst := range body {
		switch inst.Op {
		case OpEnd:
			if depth > 0 {
				depth--
			}
		case OpElse:
			if depth > 0 {
				depth--
			}
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(FormatInstr(inst))
		sb.WriteString("\n")
		switch inst.Op {
		case OpBlock, OpLoop, OpIf, OpElse:
			depth++
		}
	}
}

// FormatInstr renders one instruction in text form.
func FormatInstr(inst Instr) string {
	info, ok := inst.Op.Info()
	if !ok {
		return inst.Op.String()
	}
	switch info.Imm {
	case ImmBlockType:
		if inst.Block == BlockVoid {
			return info.Name
		}
		return fmt.Sprintf("%s (result %s)", info.Name, ValType(inst.Block))
	case ImmIndex:
		return fmt.Sprintf("%s %d", info.Name, inst.N)
	case ImmI32:
		return fmt.Sprintf("%s %d", info.Name, inst.I32V)
	case ImmF64:
		return fmt.Sprintf("%s %g", info.Name, inst.F64V)
	case ImmCallIndirect:
		return fmt.Sprintf("%s (type %d)", info.Name, inst.N)
	default:
		return info.Name
	}
}

func formatFuncType(ty FuncType) string {
	params := make([]string, len(ty.Params))
	for i, p := range ty.Params {
		params[i] = p.String()
	}
	s := "(" + strings.Join(params, " ") + ")"
	if len(ty.Results) > 0 {
		return s + " -> " + ty.Results[0].String()
	}
	return s + " -> ()"
}

func formatExpr(instrs []Instr) string {
	parts := make([]string, len(instrs))
	for i, inst := range instrs {
		parts[i] = FormatInstr(inst)
	}
	return strings.Join(parts, "; ")
}
