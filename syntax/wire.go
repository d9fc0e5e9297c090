package syntax

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format: a canonical CBOR encoding of a Program, used by tooling that
// snapshots IR between pipeline stages. Statement, expression, and atom
// nodes are interfaces, so they cross the wire as kind-tagged records.
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("syntax: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program to canonical CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(programToWire(p))
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("syntax: unmarshal program: %w", err)
	}
	p, err := programFromWire(&w)
	if err != nil {
		return nil, fmt.Errorf("syntax: unmarshal program: %w", err)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Wire records
// ---------------------------------------------------------------------------

type wireProgram struct {
	Functions []wireFunction `cbor:"functions"`
	Globals   []wireGlobal   `cbor:"globals,omitempty"`
	Data      []byte         `cbor:"data,omitempty"`
}

type wireFunction struct {
	Name   string     `cbor:"name"`
	Params []wireParam `cbor:"params,omitempty"`
	Result *Type      `cbor:"result,omitempty"`
	Body   []wireStmt `cbor:"body"`
}

type wireParam struct {
	Name string `cbor:"name"`
	Type Type   `cbor:"type"`
}

type wireGlobal struct {
	Name    string   `cbor:"name"`
	Type    Type     `cbor:"type"`
	Mutable bool     `cbor:"mutable"`
	Init    wireAtom `cbor:"init"`
}

type wireStmt struct {
	Kind  string     `cbor:"kind"`
	Name  string     `cbor:"name,omitempty"`
	Type  *Type      `cbor:"type,omitempty"`
	Expr  *wireExpr  `cbor:"expr,omitempty"`
	Cond  *wireAtom  `cbor:"cond,omitempty"`
	Value *wireAtom  `cbor:"value,omitempty"`
	Stmts []wireStmt `cbor:"stmts,omitempty"`
	Then  *wireStmt  `cbor:"then,omitempty"`
	Else  *wireStmt  `cbor:"else,omitempty"`
	Body  *wireStmt  `cbor:"body,omitempty"`
}

type wireExpr struct {
	Kind  string    `cbor:"kind"`
	Atom  *wireAtom `cbor:"atom,omitempty"`
	Elem  *Type     `cbor:"elem,omitempty"`
	HT    *wireAtom `cbor:"ht,omitempty"`
	Field *wireAtom `cbor:"field,omitempty"`
	Array *wireAtom `cbor:"array,omitempty"`
	Value *wireAtom `cbor:"value,omitempty"`
	Fun   string    `cbor:"fun,omitempty"`
	Type  *Type     `cbor:"type,omitempty"`
	Args  []string  `cbor:"args,omitempty"`
}

type wireAtom struct {
	Kind    string    `cbor:"kind"`
	Lit     *wireLit  `cbor:"lit,omitempty"`
	Name    string    `cbor:"name,omitempty"`
	HT      *wireAtom `cbor:"ht,omitempty"`
	Field   *wireAtom `cbor:"field,omitempty"`
	Array   *wireAtom `cbor:"array,omitempty"`
	Index   *wireAtom `cbor:"index,omitempty"`
	Value   *wireAtom `cbor:"value,omitempty"`
	Elem    *Type     `cbor:"elem,omitempty"`
	Op      string    `cbor:"op,omitempty"`
	Left    *wireAtom `cbor:"left,omitempty"`
	Right   *wireAtom `cbor:"right,omitempty"`
	Operand *wireAtom `cbor:"operand,omitempty"`
}

type wireLit struct {
	Kind string  `cbor:"kind"`
	I32  int32   `cbor:"i32,omitempty"`
	F64  float64 `cbor:"f64,omitempty"`
	Bool bool    `cbor:"bool,omitempty"`
	Str  string  `cbor:"str,omitempty"`
	Addr uint32  `cbor:"addr,omitempty"`
}

var binaryOpsByName = func() map[string]BinaryOp {
	m := make(map[string]BinaryOp, len(binaryOpNames))
	for op, name := range binaryOpNames {
		m[name] = op
	}
	return m
}()

var unaryOpsByName = func() map[string]UnaryOp {
	m := make(map[string]UnaryOp, len(unaryOpNames))
	for op, name := range unaryOpNames {
		m[name] = op
	}
	return m
}()

// ---------------------------------------------------------------------------
// IR to wire
// ---------------------------------------------------------------------------

func programToWire(p *Program) *wireProgram {
	w := &wireProgram{Data: p.Data}
	for _, f := range p.Functions {
		wf := wireFunction{Name: string(f.Name), Result: f.Result, Body: stmtsToWire(f.Body.Stmts)}
		for _, param := range f.Params {
			wf.Params = append(wf.Params, wireParam{Name: string(param.Name), Type: param.Type})
		}
		w.Functions = append(w.Functions, wf)
	}
	for _, g := range p.Globals {
		w.Globals = append(w.Globals, wireGlobal{
			Name:    string(g.Name),
			Type:    g.Type,
			Mutable: g.Mutable,
			Init:    *atomToWire(g.Init),
		})
	}
	return w
}

func stmtsToWire(stmts []Stmt) []wireStmt {
	out := make([]wireStmt, len(stmts))
	for i, s := range stmts {
		out[i] = *stmtToWire(s)
	}
	return out
}

func stmtToWire(s Stmt) *wireStmt {
	switch s := s.(type) {
	case *Empty:
		return &wireStmt{Kind: "empty"}
	case *Block:
		return &wireStmt{Kind: "block", Stmts: stmtsToWire(s.Stmts)}
	case *Var:
		ty := s.Type
		return &wireStmt{Kind: "var", Name: string(s.Name), Type: &ty, Expr: exprToWire(s.Expr)}
	case *Assign:
		return &wireStmt{Kind: "assign", Name: string(s.Name), Expr: exprToWire(s.Expr)}
	case *If:
		return &wireStmt{Kind: "if", Cond: atomToWire(s.Cond), Then: stmtToWire(s.Then), Else: stmtToWire(s.Else)}
	case *Loop:
		return &wireStmt{Kind: "loop", Body: stmtToWire(s.Body)}
	case *Labeled:
		return &wireStmt{Kind: "label", Name: string(s.Label), Body: stmtToWire(s.Body)}
	case *Break:
		return &wireStmt{Kind: "break", Name: string(s.Label)}
	case *ExprStmt:
		return &wireStmt{Kind: "expr", Expr: exprToWire(s.Expr)}
	case *Return:
		return &wireStmt{Kind: "return", Value: atomToWire(s.Value)}
	case *Trap:
		return &wireStmt{Kind: "trap"}
	case *Goto:
		return &wireStmt{Kind: "goto", Name: string(s.Label)}
	default:
		panic(fmt.Sprintf("syntax: unknown statement %T", s))
	}
}

func exprToWire(e Expr) *wireExpr {
	switch e := e.(type) {
	case *AtomExpr:
		return &wireExpr{Kind: "atom", Atom: atomToWire(e.Atom)}
	case *NewHT:
		elem := e.Elem
		return &wireExpr{Kind: "ht_new", Elem: &elem}
	case *NewArray:
		elem := e.Elem
		return &wireExpr{Kind: "array_new", Elem: &elem}
	case *HTSet:
		elem := e.Elem
		return &wireExpr{Kind: "ht_set", HT: atomToWire(e.HT), Field: atomToWire(e.Field), Value: atomToWire(e.Value), Elem: &elem}
	case *Push:
		elem := e.Elem
		return &wireExpr{Kind: "push", Array: atomToWire(e.Array), Value: atomToWire(e.Value), Elem: &elem}
	case *CallDirect:
		return &wireExpr{Kind: "call", Fun: string(e.Fun), Args: idsToStrings(e.Args)}
	case *CallIndirect:
		ty := e.Type
		return &wireExpr{Kind: "call_indirect", Fun: string(e.Fun), Type: &ty, Args: idsToStrings(e.Args)}
	case *ToString:
		return &wireExpr{Kind: "to_string", Value: atomToWire(e.Value)}
	default:
		panic(fmt.Sprintf("syntax: unknown expression %T", e))
	}
}

func atomToWire(a Atom) *wireAtom {
	switch a := a.(type) {
	case *Lit:
		return &wireAtom{Kind: "lit", Lit: litToWire(a)}
	case *Ident:
		return &wireAtom{Kind: "id", Name: string(a.Name)}
	case *HTGet:
		elem := a.Elem
		return &wireAtom{Kind: "ht_get", HT: atomToWire(a.HT), Field: atomToWire(a.Field), Elem: &elem}
	case *Index:
		elem := a.Elem
		return &wireAtom{Kind: "index", Array: atomToWire(a.Array), Index: atomToWire(a.Index), Elem: &elem}
	case *StringLen:
		return &wireAtom{Kind: "string_len", Value: atomToWire(a.Value)}
	case *Binary:
		return &wireAtom{Kind: "binary", Op: a.Op.String(), Left: atomToWire(a.Left), Right: atomToWire(a.Right)}
	case *Unary:
		return &wireAtom{Kind: "unary", Op: a.Op.String(), Operand: atomToWire(a.Operand)}
	default:
		panic(fmt.Sprintf("syntax: unknown atom %T", a))
	}
}

func litToWire(l *Lit) *wireLit {
	switch l.Kind {
	case IntLit:
		return &wireLit{Kind: "i32", I32: l.I32}
	case FloatLit:
		return &wireLit{Kind: "f64", F64: l.F64}
	case BoolLit:
		return &wireLit{Kind: "bool", Bool: l.Bool}
	case StrLit:
		return &wireLit{Kind: "str", Str: l.Str}
	case InternedLit:
		return &wireLit{Kind: "interned", Addr: l.Addr, Str: l.Str}
	default:
		panic(fmt.Sprintf("syntax: unknown literal kind %d", l.Kind))
	}
}

func idsToStrings(ids []Id) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ---------------------------------------------------------------------------
// Wire to IR
// ---------------------------------------------------------------------------

func programFromWire(w *wireProgram) (*Program, error) {
	p := &Program{Data: w.Data}
	for i := range w.Functions {
		wf := &w.Functions[i]
		body, err := stmtsFromWire(wf.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", wf.Name, err)
		}
		f := &Function{Name: Id(wf.Name), Result: wf.Result, Body: &Block{Stmts: body}}
		for _, wp := range wf.Params {
			f.Params = append(f.Params, Param{Name: Id(wp.Name), Type: wp.Type})
		}
		p.Functions = append(p.Functions, f)
	}
	for i := range w.Globals {
		wg := &w.Globals[i]
		init, err := atomFromWire(&wg.Init)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", wg.Name, err)
		}
		p.Globals = append(p.Globals, &Global{
			Name:    Id(wg.Name),
			Type:    wg.Type,
			Mutable: wg.Mutable,
			Init:    init,
		})
	}
	return p, nil
}

func stmtsFromWire(ws []wireStmt) ([]Stmt, error) {
	out := make([]Stmt, len(ws))
	for i := range ws {
		s, err := stmtFromWire(&ws[i])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func stmtFromWire(w *wireStmt) (Stmt, error) {
	switch w.Kind {
	case "empty":
		return &Empty{}, nil
	case "block":
		stmts, err := stmtsFromWire(w.Stmts)
		if err != nil {
			return nil, err
		}
		return &Block{Stmts: stmts}, nil
	case "var":
		if w.Type == nil || w.Expr == nil {
			return nil, fmt.Errorf("malformed var statement for %q", w.Name)
		}
		e, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &Var{Name: Id(w.Name), Type: *w.Type, Expr: e}, nil
	case "assign":
		if w.Expr == nil {
			return nil, fmt.Errorf("malformed assign statement for %q", w.Name)
		}
		e, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &Assign{Name: Id(w.Name), Expr: e}, nil
	case "if":
		if w.Cond == nil || w.Then == nil || w.Else == nil {
			return nil, fmt.Errorf("malformed if statement")
		}
		cond, err := atomFromWire(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := stmtFromWire(w.Then)
		if err != nil {
			return nil, err
		}
		els, err := stmtFromWire(w.Else)
		if err != nil {
			return nil, err
		}
		return &If{Cond: cond, Then: then, Else: els}, nil
	case "loop":
		if w.Body == nil {
			return nil, fmt.Errorf("malformed loop statement")
		}
		body, err := stmtFromWire(w.Body)
		if err != nil {
			return nil, err
		}
		return &Loop{Body: body}, nil
	case "label":
		if w.Body == nil {
			return nil, fmt.Errorf("malformed label statement for %q", w.Name)
		}
		body, err := stmtFromWire(w.Body)
		if err != nil {
			return nil, err
		}
		return &Labeled{Label: Label(w.Name), Body: body}, nil
	case "break":
		return &Break{Label: Label(w.Name)}, nil
	case "expr":
		if w.Expr == nil {
			return nil, fmt.Errorf("malformed expression statement")
		}
		e, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: e}, nil
	case "return":
		if w.Value == nil {
			return nil, fmt.Errorf("malformed return statement")
		}
		v, err := atomFromWire(w.Value)
		if err != nil {
			return nil, err
		}
		return &Return{Value: v}, nil
	case "trap":
		return &Trap{}, nil
	case "goto":
		return &Goto{Label: Label(w.Name)}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", w.Kind)
	}
}

func exprFromWire(w *wireExpr) (Expr, error) {
	switch w.Kind {
	case "atom":
		if w.Atom == nil {
			return nil, fmt.Errorf("malformed atom expression")
		}
		a, err := atomFromWire(w.Atom)
		if err != nil {
			return nil, err
		}
		return &AtomExpr{Atom: a}, nil
	case "ht_new":
		if w.Elem == nil {
			return nil, fmt.Errorf("malformed ht_new expression")
		}
		return &NewHT{Elem: *w.Elem}, nil
	case "array_new":
		if w.Elem == nil {
			return nil, fmt.Errorf("malformed array_new expression")
		}
		return &NewArray{Elem: *w.Elem}, nil
	case "ht_set":
		if w.HT == nil || w.Field == nil || w.Value == nil || w.Elem == nil {
			return nil, fmt.Errorf("malformed ht_set expression")
		}
		ht, err := atomFromWire(w.HT)
		if err != nil {
			return nil, err
		}
		field, err := atomFromWire(w.Field)
		if err != nil {
			return nil, err
		}
		value, err := atomFromWire(w.Value)
		if err != nil {
			return nil, err
		}
		return &HTSet{HT: ht, Field: field, Value: value, Elem: *w.Elem}, nil
	case "push":
		if w.Array == nil || w.Value == nil || w.Elem == nil {
			return nil, fmt.Errorf("malformed push expression")
		}
		arr, err := atomFromWire(w.Array)
		if err != nil {
			return nil, err
		}
		value, err := atomFromWire(w.Value)
		if err != nil {
			return nil, err
		}
		return &Push{Array: arr, Value: value, Elem: *w.Elem}, nil
	case "call":
		return &CallDirect{Fun: Id(w.Fun), Args: stringsToIds(w.Args)}, nil
	case "call_indirect":
		if w.Type == nil {
			return nil, fmt.Errorf("malformed call_indirect expression for %q", w.Fun)
		}
		return &CallIndirect{Fun: Id(w.Fun), Type: *w.Type, Args: stringsToIds(w.Args)}, nil
	case "to_string":
		if w.Value == nil {
			return nil, fmt.Errorf("malformed to_string expression")
		}
		v, err := atomFromWire(w.Value)
		if err != nil {
			return nil, err
		}
		return &ToString{Value: v}, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", w.Kind)
	}
}

func atomFromWire(w *wireAtom) (Atom, error) {
	switch w.Kind {
	case "lit":
		if w.Lit == nil {
			return nil, fmt.Errorf("malformed literal atom")
		}
		return litFromWire(w.Lit)
	case "id":
		return &Ident{Name: Id(w.Name)}, nil
	case "ht_get":
		if w.HT == nil || w.Field == nil || w.Elem == nil {
			return nil, fmt.Errorf("malformed ht_get atom")
		}
		ht, err := atomFromWire(w.HT)
		if err != nil {
			return nil, err
		}
		field, err := atomFromWire(w.Field)
		if err != nil {
			return nil, err
		}
		return &HTGet{HT: ht, Field: field, Elem: *w.Elem}, nil
	case "index":
		if w.Array == nil || w.Index == nil || w.Elem == nil {
			return nil, fmt.Errorf("malformed index atom")
		}
		arr, err := atomFromWire(w.Array)
		if err != nil {
			return nil, err
		}
		idx, err := atomFromWire(w.Index)
		if err != nil {
			return nil, err
		}
		return &Index{Array: arr, Index: idx, Elem: *w.Elem}, nil
	case "string_len":
		if w.Value == nil {
			return nil, fmt.Errorf("malformed string_len atom")
		}
		v, err := atomFromWire(w.Value)
		if err != nil {
			return nil, err
		}
		return &StringLen{Value: v}, nil
	case "binary":
		op, ok := binaryOpsByName[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown binary operator %q", w.Op)
		}
		if w.Left == nil || w.Right == nil {
			return nil, fmt.Errorf("malformed binary atom %q", w.Op)
		}
		left, err := atomFromWire(w.Left)
		if err != nil {
			return nil, err
		}
		right, err := atomFromWire(w.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: left, Right: right}, nil
	case "unary":
		op, ok := unaryOpsByName[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown unary operator %q", w.Op)
		}
		if w.Operand == nil {
			return nil, fmt.Errorf("malformed unary atom %q", w.Op)
		}
		operand, err := atomFromWire(w.Operand)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Operand: operand}, nil
	default:
		return nil, fmt.Errorf("unknown atom kind %q", w.Kind)
	}
}

func litFromWire(w *wireLit) (*Lit, error) {
	switch w.Kind {
	case "i32":
		return &Lit{Kind: IntLit, I32: w.I32}, nil
	case "f64":
		return &Lit{Kind: FloatLit, F64: w.F64}, nil
	case "bool":
		return &Lit{Kind: BoolLit, Bool: w.Bool}, nil
	case "str":
		return &Lit{Kind: StrLit, Str: w.Str}, nil
	case "interned":
		return &Lit{Kind: InternedLit, Addr: w.Addr, Str: w.Str}, nil
	default:
		return nil, fmt.Errorf("unknown literal kind %q", w.Kind)
	}
}

func stringsToIds(ss []string) []Id {
	out := make([]Id, len(ss))
	for i, s := range ss {
		out[i] = Id(s)
	}
	return out
}
