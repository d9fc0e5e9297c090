package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/nwlang/notwasm/parser"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "return cou"
	pos := protocol.Position{Line: 0, Character: 10}
	prefix := extractPrefix(text, pos)
	if prefix != "cou" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "cou")
	}
}

func TestExtractPrefix_AtStart(t *testing.T) {
	text := "fib"
	pos := protocol.Position{Line: 0, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "fib" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "fib")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "function main(): i32 {\n\tvar x: i32 = 1;\n\tret"
	pos := protocol.Position{Line: 2, Character: 4}
	prefix := extractPrefix(text, pos)
	if prefix != "ret" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "ret")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

func TestExtractWord_SimpleWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_SecondWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 8}
	word := extractWord(text, pos)
	if word != "world" {
		t.Errorf("extractWord = %q, want %q", word, "world")
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	text := "my_var"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "my_var" {
		t.Errorf("extractWord = %q, want %q", word, "my_var")
	}
}

func TestExtractWord_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord beyond doc = %q, want empty string", word)
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}
}

// ---------------------------------------------------------------------------
// Analysis pipeline
// ---------------------------------------------------------------------------

const cleanSource = `const limit: i32 = 100;

function double(n: i32): i32 {
	return n + n;
}

function main(): i32 {
	var x: i32 = 21;
	var y: i32 = double(x);
	return y;
}
`

func TestAnalyzeCleanProgram(t *testing.T) {
	prog, diagnostics := analyze(cleanSource)
	if prog == nil {
		t.Fatal("analyze returned no program")
	}
	if len(diagnostics) != 0 {
		t.Fatalf("clean program produced %d diagnostics: %+v", len(diagnostics), diagnostics)
	}
	if prog.FindFunction("double") == nil {
		t.Error("analyzed program is missing the double function")
	}
}

func TestAnalyzeParseError(t *testing.T) {
	_, diagnostics := analyze("function main(): i32 { return 1 }")
	if len(diagnostics) == 0 {
		t.Fatal("expected a diagnostic for the missing semicolon")
	}
	d := diagnostics[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("parse diagnostic should be an error")
	}
	if !strings.Contains(d.Message, "expected ;") {
		t.Errorf("message = %q, want missing-semicolon complaint", d.Message)
	}
}

func TestAnalyzeCheckError(t *testing.T) {
	src := `function main(): i32 {
	var x: i32 = true;
	return x;
}
`
	_, diagnostics := analyze(src)
	found := false
	for _, d := range diagnostics {
		if strings.Contains(d.Message, "type mismatch") {
			found = true
			// 1-based source line 2 maps to protocol line 1.
			if d.Range.Start.Line != 1 {
				t.Errorf("diagnostic line = %d, want 1", d.Range.Start.Line)
			}
		}
	}
	if !found {
		t.Errorf("no type mismatch diagnostic in %+v", diagnostics)
	}
}

func TestAnalyzeWarningSeverity(t *testing.T) {
	src := `function f(b: bool): i32 {
	if (b) {
		return 1;
	}
}

function main(): i32 {
	return 0;
}
`
	_, diagnostics := analyze(src)
	found := false
	for _, d := range diagnostics {
		if strings.Contains(d.Message, "without returning") {
			found = true
			if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityWarning {
				t.Error("fall-off diagnostic should be a warning")
			}
		}
	}
	if !found {
		t.Errorf("no fall-off warning in %+v", diagnostics)
	}
}

func TestAnalyzeBackendError(t *testing.T) {
	// A backward goto passes the checker (the target exists) but the
	// structurer rejects it, so the diagnostic comes from the backend.
	src := `function main(): i32 {
	again: {
		var x: i32 = 1;
	}
	goto again;
	return 0;
}
`
	_, diagnostics := analyze(src)
	if len(diagnostics) == 0 {
		t.Fatal("expected a backend diagnostic for the backward goto")
	}
	var hasError bool
	for _, d := range diagnostics {
		if d.Severity != nil && *d.Severity == protocol.DiagnosticSeverityError {
			hasError = true
		}
	}
	if !hasError {
		t.Errorf("no error-severity diagnostic in %+v", diagnostics)
	}
}

// ---------------------------------------------------------------------------
// Completion, hover, definition
// ---------------------------------------------------------------------------

func testDocument(t *testing.T) *document {
	t.Helper()
	prog, d := parser.Parse(cleanSource)
	if d.HasErrors() {
		t.Fatalf("test source does not parse:\n%s", d.Format("test.notwasm"))
	}
	return &document{text: cleanSource, program: prog}
}

func TestLSP_CompleteFunctions(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	items := s.complete(doc.program, "dou")
	found := false
	for _, item := range items {
		if item.Label == "double" {
			found = true
			if item.Kind == nil || *item.Kind != protocol.CompletionItemKindFunction {
				t.Error("double completion should have Kind=Function")
			}
			if item.Detail == nil || *item.Detail != "function double(n: i32): i32" {
				t.Errorf("double detail = %v, want the signature", item.Detail)
			}
		}
	}
	if !found {
		t.Error("complete for 'dou' should include 'double'")
	}
}

func TestLSP_CompleteGlobalsAndKeywords(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	items := s.complete(doc.program, "l")
	var haveGlobal, haveKeyword bool
	for _, item := range items {
		switch item.Label {
		case "limit":
			haveGlobal = true
			if item.Detail == nil || *item.Detail != "const limit: i32" {
				t.Errorf("limit detail = %v, want const declaration", item.Detail)
			}
		case "loop":
			haveKeyword = true
			if item.Kind == nil || *item.Kind != protocol.CompletionItemKindKeyword {
				t.Error("loop completion should have Kind=Keyword")
			}
		}
	}
	if !haveGlobal {
		t.Error("complete for 'l' should include the global 'limit'")
	}
	if !haveKeyword {
		t.Error("complete for 'l' should include the keyword 'loop'")
	}
}

func TestLSP_HoverFunction(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	hover := s.hover(doc.program, "double")
	if hover == nil {
		t.Fatal("hover for 'double' should return a result")
	}
	mc, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	if !strings.Contains(mc.Value, "function double(n: i32): i32") {
		t.Errorf("hover content = %q, want the signature", mc.Value)
	}
}

func TestLSP_HoverGlobal(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	hover := s.hover(doc.program, "limit")
	if hover == nil {
		t.Fatal("hover for 'limit' should return a result")
	}
	mc := hover.Contents.(protocol.MarkupContent)
	if !strings.Contains(mc.Value, "const limit: i32") {
		t.Errorf("hover content = %q, want the declaration", mc.Value)
	}
}

func TestLSP_HoverUnknownWord(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	if hover := s.hover(doc.program, "nosuchthing99"); hover != nil {
		t.Error("hover for an unknown word should return nil")
	}
}

func TestLSP_DefinitionFunction(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	locations := s.definition(doc.program, "file:///test.notwasm", "double")
	if len(locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(locations))
	}
	loc := locations[0]
	if string(loc.URI) != "file:///test.notwasm" {
		t.Errorf("definition URI = %q, want the document itself", loc.URI)
	}
	// double is declared on 1-based source line 3, protocol line 2.
	if loc.Range.Start.Line != 2 {
		t.Errorf("definition line = %d, want 2", loc.Range.Start.Line)
	}
}

func TestLSP_DefinitionGlobal(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	locations := s.definition(doc.program, "file:///test.notwasm", "limit")
	if len(locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(locations))
	}
	if locations[0].Range.Start.Line != 0 {
		t.Errorf("definition line = %d, want 0", locations[0].Range.Start.Line)
	}
}

func TestLSP_DefinitionUnknownWord(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}
	doc := testDocument(t)

	if locations := s.definition(doc.program, "file:///test.notwasm", "nope"); len(locations) != 0 {
		t.Errorf("definition for unknown word returned %d locations, want 0", len(locations))
	}
}

// ---------------------------------------------------------------------------
// Rendering helpers
// ---------------------------------------------------------------------------

func TestSignatureRendering(t *testing.T) {
	prog, d := parser.Parse(`function pick(h: HT(f64), key: str): f64 {
	var v: f64 = h[key]: f64;
	return v;
}

function note() {
	trap;
}

function main(): i32 {
	return 0;
}
`)
	if d.HasErrors() {
		t.Fatalf("parse:\n%s", d.Format("test.notwasm"))
	}

	if got := signature(prog.FindFunction("pick")); got != "function pick(h: HT(f64), key: str): f64" {
		t.Errorf("signature = %q", got)
	}
	if got := signature(prog.FindFunction("note")); got != "function note()" {
		t.Errorf("void signature = %q", got)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	s := &LspServer{docs: make(map[string]*document)}

	prog, diagnostics := analyze(cleanSource)
	s.mu.Lock()
	s.docs["file:///test.notwasm"] = &document{text: cleanSource, program: prog}
	s.mu.Unlock()
	if len(diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}

	doc := s.lookup("file:///test.notwasm")
	if doc == nil {
		t.Fatal("document should be stored after open")
	}
	if doc.text != cleanSource {
		t.Error("stored text does not match")
	}

	s.mu.Lock()
	delete(s.docs, "file:///test.notwasm")
	s.mu.Unlock()

	if s.lookup("file:///test.notwasm") != nil {
		t.Error("document should be removed after close")
	}
}
