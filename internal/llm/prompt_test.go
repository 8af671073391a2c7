package llm

import (
	"strings"
	"testing"

	"github.com/manekies/document-converter-app/internal/document"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"äöüß", 2, "äö"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	s := document.Structure{Elements: []document.Element{{Type: document.KindParagraph, Content: "body"}}}
	tests := []struct {
		style PromptStyle
		want  string
	}{
		{PromptDetailed, "Preserve language: fr"},
		{PromptCompact, "Clean artifacts"},
		{PromptReservoir, "Reconstruct semantic document structure"},
	}
	for _, tt := range tests {
		p := BuildPrompt(tt.style, "texte", s, "fr", 0)
		if !strings.Contains(p, tt.want) || !strings.Contains(p, "texte") || !strings.Contains(p, `"content":"body"`) {
			t.Errorf("style %d prompt = %q", tt.style, p)
		}
	}
	if !strings.Contains(BuildPrompt(PromptDetailed, "", s, "en", 0), `"formula"`) {
		t.Error("detailed prompt must embed the schema")
	}
}

func TestPromptBudgets(t *testing.T) {
	if PromptDetailed.Budget() != 18000 || PromptCompact.Budget() != 24000 || PromptReservoir.Budget() != 20000 {
		t.Error("unexpected default budgets")
	}
	long := strings.Repeat("x", 30000)
	p := BuildPrompt(PromptCompact, long, document.Structure{}, "en", 0)
	if strings.Contains(p, strings.Repeat("x", 24001)) {
		t.Error("text exceeds the compact budget")
	}
}
