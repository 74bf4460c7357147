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

	"github.com/chazu/duet/pkg/asm"
)

const lspName = "duet-lsp"

var log = commonlog.GetLogger("duet.lsp")

// LspServer provides diagnostics, hover, completion and jump navigation for
// duet and coprocessor assembly.
type LspServer struct {
	// set is the dialect documents are checked against. Zero means the
	// dialect is detected per document.
	set asm.InstructionSet

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. A zero set detects the dialect of each
// document.
func NewLSP(set asm.InstructionSet) *LspServer {
	s := &LspServer{
		set:     set,
		docs:    make(map[string]string),
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
		TextDocumentReferences: s.textDocumentReferences,
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
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{" "},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

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
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.store(uri, text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.store(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
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

func (s *LspServer) store(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) setFor(text string) asm.InstructionSet {
	if s.set != 0 {
		return s.set
	}
	return detectSet(text)
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(text, params.Position, s.setFor(text)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word, s.setFor(text)), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	loc := jumpTarget(uri, text, params.Position)
	if loc == nil {
		return nil, nil
	}
	return []protocol.Location{*loc}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	r, err := asm.ParseRegister(word)
	if err != nil {
		return nil, nil
	}
	return registerReferences(uri, text, r), nil
}

// --- Analysis (pure functions over document text) ---

// detectSet picks the dialect a document is written in: coprocessor when
// it uses sub or jnz, duet otherwise.
func detectSet(text string) asm.InstructionSet {
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if op, ok := asm.LookupOpcode(fields[0]); ok && asm.GetOpcodeInfo(op).Sets == asm.Coprocessor {
			return asm.Coprocessor
		}
	}
	return asm.Duet
}

// diagnose decodes every line of text and reports each one that fails.
// Unlike asm.Parse it does not stop at the first error.
func diagnose(text string, set asm.InstructionSet) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		_, err := asm.Decode(line, set)
		if err == nil {
			continue
		}
		start := len(raw) - len(strings.TrimLeft(raw, " \t"))
		end := len(strings.TrimRight(raw, " \t\r"))
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(start)},
				End:   protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(end)},
			},
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}
	return diagnostics
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text, s.setFor(text))
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// hover describes an opcode mnemonic or a register name.
func hover(word string, set asm.InstructionSet) *protocol.Hover {
	var b strings.Builder

	if op, ok := asm.LookupOpcode(word); ok {
		info := asm.GetOpcodeInfo(op)
		fmt.Fprintf(&b, "**%s**", info.Name)
		for i, shape := range info.Shapes {
			fmt.Fprintf(&b, " `%c`:%s", 'X'+i, shape)
		}
		b.WriteString("\n\n")
		b.WriteString(strings.ToUpper(info.Doc[:1]) + info.Doc[1:] + ".")
		fmt.Fprintf(&b, "\n\nInstruction sets: %s", info.Sets)
		if info.Sets&set == 0 {
			fmt.Fprintf(&b, "\n\n*Not available in %s programs.*", set)
		}
	} else if r, err := asm.ParseRegister(word); err == nil {
		fmt.Fprintf(&b, "**register %s**\n\n64-bit signed integer, initially 0.", r)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// complete offers mnemonics for the first token of a line and registers for
// operands.
func complete(text string, pos protocol.Position, set asm.InstructionSet) []protocol.CompletionItem {
	prefix := extractPrefix(text, pos)
	line := lineAt(text, pos.Line)
	col := min(int(pos.Character), len(line))
	before := strings.TrimSpace(line[:col-len(prefix)])

	var items []protocol.CompletionItem
	if before == "" {
		kind := protocol.CompletionItemKindKeyword
		for _, op := range asm.Opcodes(set) {
			info := asm.GetOpcodeInfo(op)
			if !strings.HasPrefix(info.Name, prefix) {
				continue
			}
			name := info.Name
			detail := info.Doc
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
		return items
	}

	// Registers already used in the document come first.
	used := usedRegisters(text)
	kind := protocol.CompletionItemKindVariable
	for r := asm.Register('a'); r <= 'z'; r++ {
		name := r.String()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		detail := "register"
		sortText := "1" + name
		if used[r] {
			detail = "register (used)"
			sortText = "0" + name
		}
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			SortText:   &sortText,
			InsertText: &name,
		})
	}
	return items
}

func usedRegisters(text string) map[asm.Register]bool {
	used := make(map[asm.Register]bool)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		for _, f := range fields[min(1, len(fields)):] {
			if r, err := asm.ParseRegister(f); err == nil {
				used[r] = true
			}
		}
	}
	return used
}

// jumpTarget resolves the destination of the jump instruction on the
// cursor's line when its offset is a literal. Blank lines do not count as
// instructions, matching asm.Parse.
func jumpTarget(uri protocol.DocumentUri, text string, pos protocol.Position) *protocol.Location {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil
	}
	in, err := asm.Decode(strings.TrimSpace(lines[pos.Line]), asm.Duet|asm.Coprocessor)
	if err != nil || !in.Op.IsJump() || !in.Y().IsLiteral() {
		return nil
	}

	// Map instruction indices to document lines.
	var instrLines []int
	self := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i == int(pos.Line) {
			self = len(instrLines)
		}
		instrLines = append(instrLines, i)
	}

	target := int64(self) + in.Y().Literal
	if target < 0 || target >= int64(len(instrLines)) {
		return nil
	}
	line := protocol.UInteger(instrLines[target])
	return &protocol.Location{
		URI: uri,
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: 0},
			End:   protocol.Position{Line: line, Character: protocol.UInteger(len(lines[line]))},
		},
	}
}

// registerReferences lists every operand position naming r.
func registerReferences(uri protocol.DocumentUri, text string, r asm.Register) []protocol.Location {
	var locations []protocol.Location
	for i, line := range strings.Split(text, "\n") {
		for _, col := range operandColumns(line) {
			if line[col] != byte(r) || (col+1 < len(line) && !unicode.IsSpace(rune(line[col+1]))) {
				continue
			}
			locations = append(locations, protocol.Location{
				URI: uri,
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(col)},
					End:   protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(col + 1)},
				},
			})
		}
	}
	return locations
}

// operandColumns returns the starting column of each field after the first.
func operandColumns(line string) []int {
	var cols []int
	field := 0
	for i := 0; i < len(line); i++ {
		if unicode.IsSpace(rune(line[i])) {
			continue
		}
		if field > 0 {
			cols = append(cols, i)
		}
		field++
		for i < len(line) && !unicode.IsSpace(rune(line[i])) {
			i++
		}
	}
	return cols
}

// --- Text extraction helpers ---

func lineAt(text string, n protocol.UInteger) string {
	lines := strings.Split(text, "\n")
	if int(n) >= len(lines) {
		return ""
	}
	return lines[n]
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line := lineAt(text, pos.Line)
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the token
	start := col
	for start > 0 && isTokenChar(line[start-1]) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full token under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line := lineAt(text, pos.Line)
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isTokenChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isTokenChar(line[end]) {
		end++
	}

	return line[start:end]
}

func isTokenChar(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '-'
}

func boolPtr(b bool) *bool {
	return &b
}
