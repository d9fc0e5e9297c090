// Package server implements the NotWasm language server.
package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/nwlang/notwasm/check"
	"github.com/nwlang/notwasm/compile"
	"github.com/nwlang/notwasm/parser"
	"github.com/nwlang/notwasm/syntax"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "notwasm-lsp"

// document is the server's view of one open file: its current text and the
// program the last analysis produced. The program may be partial when the
// text has parse errors; hover and completion use whatever survived.
type document struct {
	text    string
	program *syntax.Program
}

// LspServer serves editor features for NotWasm source files. Every feature
// works from a fresh analysis of the open document; there is no shared
// compiler state to guard beyond the document map.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "NotWasm LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.reanalyze(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.reanalyze(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// reanalyze stores the new text, runs the pipeline over it, and publishes
// the resulting diagnostics.
func (s *LspServer) reanalyze(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	prog, diagnostics := analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = &document{text: text, program: prog}
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// analyze runs parse, check, and compile over the text and collects every
// diagnostic. Compilation only runs on programs the front half accepts; a
// backend fault (a goto the structurer cannot eliminate, say) becomes one
// error at the top of the file.
func analyze(text string) (*syntax.Program, []protocol.Diagnostic) {
	prog, parseDiags := parser.Parse(text)

	collected := parseDiags.All()
	if !parseDiags.HasErrors() {
		checkDiags := check.Program(prog)
		collected = append(collected, checkDiags.All()...)
		if !checkDiags.HasErrors() {
			if _, err := compile.Compile(prog); err != nil {
				collected = append(collected, check.Diagnostic{
					Severity: check.Error,
					Message:  err.Error(),
				})
			}
		}
	}

	diagnostics := make([]protocol.Diagnostic, 0, len(collected))
	for _, d := range collected {
		diagnostics = append(diagnostics, toProtocolDiagnostic(d))
	}
	return prog, diagnostics
}

// toProtocolDiagnostic converts a 1-based compiler diagnostic into a
// zero-width 0-based LSP range.
func toProtocolDiagnostic(d check.Diagnostic) protocol.Diagnostic {
	pos := toProtocolPosition(d.Line, d.Column)
	severity := protocol.DiagnosticSeverityError
	if d.Severity == check.Warning {
		severity = protocol.DiagnosticSeverityWarning
	}
	source := lspName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: pos},
		Severity: &severity,
		Source:   &source,
		Message:  d.Message,
	}
}

// toProtocolPosition maps 1-based line/column to the protocol's 0-based
// positions. Diagnostics without a position land at the top of the file.
func toProtocolPosition(line, col int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	return protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(col - 1),
	}
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.complete(doc.program, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	return s.hover(doc.program, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}

	locations := s.definition(doc.program, params.TextDocument.URI, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Analysis-backed logic ---

// keywordCompletions lists the language's fixed words, offered alongside
// the program's own names.
var keywordCompletions = []string{
	"function", "var", "const", "if", "else", "loop", "while",
	"break", "return", "goto", "trap", "true", "false",
}

// typeCompletions lists the type spellings.
var typeCompletions = []string{"i32", "f64", "bool", "str", "any", "HT", "Array"}

func (s *LspServer) complete(prog *syntax.Program, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	if prog != nil {
		for _, f := range prog.Functions {
			name := string(f.Name)
			if strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
				kind := protocol.CompletionItemKindFunction
				detail := signature(f)
				nameCopy := name
				items = append(items, protocol.CompletionItem{
					Label:      name,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &nameCopy,
				})
			}
		}

		for _, g := range prog.Globals {
			name := string(g.Name)
			if strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
				kind := protocol.CompletionItemKindVariable
				detail := globalDecl(g)
				nameCopy := name
				items = append(items, protocol.CompletionItem{
					Label:      name,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &nameCopy,
				})
			}
		}
	}

	for _, word := range keywordCompletions {
		if strings.HasPrefix(word, lowerPrefix) {
			kind := protocol.CompletionItemKindKeyword
			wordCopy := word
			items = append(items, protocol.CompletionItem{
				Label:      word,
				Kind:       &kind,
				InsertText: &wordCopy,
			})
		}
	}
	for _, word := range typeCompletions {
		if strings.HasPrefix(strings.ToLower(word), lowerPrefix) {
			kind := protocol.CompletionItemKindClass
			detail := "type"
			wordCopy := word
			items = append(items, protocol.CompletionItem{
				Label:      word,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &wordCopy,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(prog *syntax.Program, word string) *protocol.Hover {
	if prog == nil {
		return nil
	}

	if f := prog.FindFunction(syntax.Id(word)); f != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "```notwasm\n%s\n```\n\n", signature(f))
		if f.Result != nil {
			fmt.Fprintf(&b, "%d parameters, returns %s", len(f.Params), f.Result)
		} else {
			fmt.Fprintf(&b, "%d parameters, no result", len(f.Params))
		}
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: b.String(),
			},
		}
	}

	for _, g := range prog.Globals {
		if string(g.Name) == word {
			return &protocol.Hover{
				Contents: protocol.MarkupContent{
					Kind:  protocol.MarkupKindMarkdown,
					Value: fmt.Sprintf("```notwasm\n%s\n```", globalDecl(g)),
				},
			}
		}
	}

	return nil
}

func (s *LspServer) definition(prog *syntax.Program, uri protocol.DocumentUri, word string) []protocol.Location {
	if prog == nil {
		return nil
	}

	if f := prog.FindFunction(syntax.Id(word)); f != nil {
		pos := toProtocolPosition(f.Pos.Line, f.Pos.Column)
		return []protocol.Location{{
			URI:   uri,
			Range: protocol.Range{Start: pos, End: pos},
		}}
	}

	for _, g := range prog.Globals {
		if string(g.Name) == word {
			pos := toProtocolPosition(g.Pos.Line, g.Pos.Column)
			return []protocol.Location{{
				URI:   uri,
				Range: protocol.Range{Start: pos, End: pos},
			}}
		}
	}

	return nil
}

// signature renders a function header the way it is written in source.
func signature(f *syntax.Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, p.Type)
	}
	b.WriteString(")")
	if f.Result != nil {
		fmt.Fprintf(&b, ": %s", f.Result)
	}
	return b.String()
}

// globalDecl renders a global's declaration line.
func globalDecl(g *syntax.Global) string {
	keyword := "var"
	if !g.Mutable {
		keyword = "const"
	}
	return fmt.Sprintf("%s %s: %s", keyword, g.Name, g.Type)
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	// Find end
	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
