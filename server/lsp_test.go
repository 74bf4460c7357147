package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/duet/pkg/asm"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"mnemonic", "jg", protocol.Position{Line: 0, Character: 2}, "jg"},
		{"operand", "add a", protocol.Position{Line: 0, Character: 5}, "a"},
		{"negative literal", "jgz a -1", protocol.Position{Line: 0, Character: 8}, "-1"},
		{"after space", "snd ", protocol.Position{Line: 0, Character: 4}, ""},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "set a 1\nmu", protocol.Position{Line: 1, Character: 2}, "mu"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "rcv", protocol.Position{Line: 0, Character: 40}, "rcv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"start of mnemonic", "snd a", protocol.Position{Line: 0, Character: 0}, "snd"},
		{"inside mnemonic", "snd a", protocol.Position{Line: 0, Character: 2}, "snd"},
		{"end of mnemonic", "snd a", protocol.Position{Line: 0, Character: 3}, "snd"},
		{"operand", "snd a", protocol.Position{Line: 0, Character: 4}, "a"},
		{"literal", "jgz a -2", protocol.Position{Line: 0, Character: 7}, "-2"},
		{"between spaces", "set  a", protocol.Position{Line: 0, Character: 4}, ""},
		{"multi line", "set a 1\nrcv b", protocol.Position{Line: 1, Character: 1}, "rcv"},
		{"line beyond document", "snd a", protocol.Position{Line: 3, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point to true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point to false")
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func TestDetectSet(t *testing.T) {
	if got := detectSet("set a 1\nsnd a\nrcv a"); got != asm.Duet {
		t.Errorf("detectSet(duet) = %s", got)
	}
	if got := detectSet("set b 57\nsub b -1\njnz b 2"); got != asm.Coprocessor {
		t.Errorf("detectSet(coprocessor) = %s", got)
	}
	if got := detectSet(""); got != asm.Duet {
		t.Errorf("detectSet(empty) = %s", got)
	}
}

func TestDiagnose(t *testing.T) {
	text := "set a 1\n\n  frob a\nsnd 1 2\njnz a 2\nmod 3 a  \nrcv a"
	diags := diagnose(text, asm.Duet)

	wantLines := []protocol.UInteger{2, 3, 4, 5}
	if len(diags) != len(wantLines) {
		t.Fatalf("got %d diagnostics, want %d: %+v", len(diags), len(wantLines), diags)
	}
	for i, d := range diags {
		if d.Range.Start.Line != wantLines[i] {
			t.Errorf("diagnostic %d on line %d, want %d", i, d.Range.Start.Line, wantLines[i])
		}
		if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
			t.Errorf("diagnostic %d severity = %v, want error", i, d.Severity)
		}
	}

	// Range covers the trimmed instruction text.
	if diags[0].Range.Start.Character != 2 || diags[0].Range.End.Character != 8 {
		t.Errorf("frob range = %+v, want columns 2..8", diags[0].Range)
	}
	if diags[3].Range.End.Character != 7 {
		t.Errorf("mod range end = %d, want 7", diags[3].Range.End.Character)
	}
	if !strings.Contains(diags[0].Message, "frob") {
		t.Errorf("message %q should name the opcode", diags[0].Message)
	}
}

func TestDiagnoseClean(t *testing.T) {
	diags := diagnose("set b 57\nsub b -1\njnz b 2\n", asm.Coprocessor)
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnose = %v, want empty non-nil slice", diags)
	}
}

func TestHover(t *testing.T) {
	h := hover("jgz", asm.Duet)
	if h == nil {
		t.Fatal("hover(jgz) returned nil")
	}
	content := h.Contents.(protocol.MarkupContent)
	if content.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover kind = %s, want markdown", content.Kind)
	}
	for _, want := range []string{"**jgz**", "`X`:value", "`Y`:value", "greater than zero"} {
		if !strings.Contains(content.Value, want) {
			t.Errorf("hover(jgz) = %q, missing %q", content.Value, want)
		}
	}
	if strings.Contains(content.Value, "Not available") {
		t.Errorf("jgz should be available in duet programs: %q", content.Value)
	}

	h = hover("jgz", asm.Coprocessor)
	if !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "Not available in coprocessor") {
		t.Errorf("hover(jgz) in coprocessor should warn: %q", h.Contents.(protocol.MarkupContent).Value)
	}

	h = hover("b", asm.Duet)
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "register b") {
		t.Errorf("hover(b) = %+v", h)
	}

	if h := hover("frob", asm.Duet); h != nil {
		t.Errorf("hover(frob) = %+v, want nil", h)
	}
	if h := hover("42", asm.Duet); h != nil {
		t.Errorf("hover(42) = %+v, want nil", h)
	}
}

func labels(items []protocol.CompletionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestCompleteMnemonic(t *testing.T) {
	items := complete("set a 1\ns", protocol.Position{Line: 1, Character: 1}, asm.Duet)
	got := strings.Join(labels(items), ",")
	if got != "set,snd" {
		t.Errorf("complete(s) = %s, want set,snd", got)
	}

	items = complete("j", protocol.Position{Line: 0, Character: 1}, asm.Coprocessor)
	if got := strings.Join(labels(items), ","); got != "jnz" {
		t.Errorf("complete(j) in coprocessor = %s, want jnz", got)
	}

	items = complete("", protocol.Position{Line: 0, Character: 0}, asm.Duet)
	if len(items) != 7 {
		t.Errorf("complete on empty line offered %d mnemonics, want 7", len(items))
	}
}

func TestCompleteRegister(t *testing.T) {
	text := "set f 1\nadd "
	items := complete(text, protocol.Position{Line: 1, Character: 4}, asm.Duet)
	if len(items) != 26 {
		t.Fatalf("complete operand offered %d registers, want 26", len(items))
	}
	for _, it := range items {
		if it.Label == "f" && (it.SortText == nil || *it.SortText != "0f") {
			t.Errorf("used register f should sort first, got %v", it.SortText)
		}
		if it.Label == "g" && (it.SortText == nil || *it.SortText != "1g") {
			t.Errorf("unused register g sort text = %v", it.SortText)
		}
	}

	items = complete("add b", protocol.Position{Line: 0, Character: 5}, asm.Duet)
	if got := strings.Join(labels(items), ","); got != "b" {
		t.Errorf("complete(add b) = %s, want b", got)
	}
}

func TestJumpTarget(t *testing.T) {
	uri := protocol.DocumentUri("file:///prog.duet")
	text := "set a 1\n\nadd a 2\njgz a -2\njgz a 9\njgz a b"

	loc := jumpTarget(uri, text, protocol.Position{Line: 3, Character: 0})
	if loc == nil {
		t.Fatal("jumpTarget returned nil")
	}
	if loc.URI != uri || loc.Range.Start.Line != 0 || loc.Range.End.Character != 7 {
		t.Errorf("jumpTarget = %+v, want line 0 of %s", loc, uri)
	}

	if loc := jumpTarget(uri, text, protocol.Position{Line: 4}); loc != nil {
		t.Errorf("jump out of program should have no target, got %+v", loc)
	}
	if loc := jumpTarget(uri, text, protocol.Position{Line: 5}); loc != nil {
		t.Errorf("register offset should have no target, got %+v", loc)
	}
	if loc := jumpTarget(uri, text, protocol.Position{Line: 2}); loc != nil {
		t.Errorf("non-jump should have no target, got %+v", loc)
	}
	if loc := jumpTarget(uri, text, protocol.Position{Line: 99}); loc != nil {
		t.Errorf("line beyond document should have no target, got %+v", loc)
	}
}

func TestRegisterReferences(t *testing.T) {
	uri := protocol.DocumentUri("file:///prog.duet")
	text := "set a 1\nadd b a\nsnd a\nrcv b"

	locs := registerReferences(uri, text, 'a')
	want := []protocol.Position{{Line: 0, Character: 4}, {Line: 1, Character: 6}, {Line: 2, Character: 4}}
	if len(locs) != len(want) {
		t.Fatalf("got %d references, want %d: %+v", len(locs), len(want), locs)
	}
	for i, loc := range locs {
		if loc.Range.Start != want[i] {
			t.Errorf("reference %d at %+v, want %+v", i, loc.Range.Start, want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Document store
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := NewLSP(0)

	lsp.store("file:///test.duet", "snd 1")
	text, ok := lsp.document("file:///test.duet")
	if !ok {
		t.Error("document should be stored after open")
	}
	if text != "snd 1" {
		t.Errorf("document text = %q, want %q", text, "snd 1")
	}

	// Simulate didClose
	lsp.mu.Lock()
	delete(lsp.docs, "file:///test.duet")
	lsp.mu.Unlock()

	if _, ok := lsp.document("file:///test.duet"); ok {
		t.Error("document should be removed after close")
	}
}

func TestSetFor(t *testing.T) {
	if got := NewLSP(asm.Duet).setFor("jnz a 2"); got != asm.Duet {
		t.Errorf("fixed set = %s, want duet", got)
	}
	if got := NewLSP(0).setFor("jnz a 2"); got != asm.Coprocessor {
		t.Errorf("detected set = %s, want coprocessor", got)
	}
}
