package llm

import (
	"encoding/json"
	"strings"

	"github.com/manekies/document-converter-app/internal/document"
)

// Character budgets applied to both the text and the serialized structure.
const (
	DetailedBudget  = 18000
	CompactBudget   = 24000
	ReservoirBudget = 20000
)

// SystemMessage is sent as the system turn by chat-style backends.
const SystemMessage = "Return only valid JSON for the DocumentStructure schema."

// PromptStyle selects how much instruction accompanies the payload.
type PromptStyle int

const (
	// PromptDetailed spells out the task and embeds the JSON Schema.
	PromptDetailed PromptStyle = iota
	// PromptCompact relies on the system message for the schema.
	PromptCompact
	// PromptReservoir is the minimal instruction used by fallback backends.
	PromptReservoir
)

// Budget returns the default character budget for a style.
func (s PromptStyle) Budget() int {
	switch s {
	case PromptDetailed:
		return DetailedBudget
	case PromptCompact:
		return CompactBudget
	default:
		return ReservoirBudget
	}
}

// BuildPrompt composes the refinement prompt. budget <= 0 uses the style default.
func BuildPrompt(style PromptStyle, text string, structure document.Structure, language string, budget int) string {
	if budget <= 0 {
		budget = style.Budget()
	}
	structJSON, err := document.Marshal(structure)
	if err != nil {
		structJSON = []byte("{}")
	}

	var b strings.Builder
	switch style {
	case PromptDetailed:
		b.WriteString("You are given OCR text and a preliminary structure of a document.\n")
		b.WriteString("Your task:\n")
		b.WriteString("1) Clean post-OCR artifacts.\n")
		b.WriteString("2) Reconstruct a semantic, editable document layout with headings, lists, tables and paragraphs.\n")
		b.WriteString("3) Output STRICTLY one JSON object matching this JSON Schema:\n")
		b.WriteString(mustJSON(document.JSONSchema()))
		b.WriteString("\n\nPreserve language: ")
		b.WriteString(language)
		b.WriteString(".\nEnsure valid JSON with no comments.\n")
	case PromptCompact:
		b.WriteString("You are given OCR text and a preliminary structure of a document.\n")
		b.WriteString("Clean artifacts and reconstruct a semantic editable structure.\n")
		b.WriteString("Return ONLY JSON matching the DocumentStructure shape of the preliminary structure. No extra text.\n")
		b.WriteString("Language: ")
		b.WriteString(language)
		b.WriteString("\n")
	default:
		b.WriteString("Reconstruct semantic document structure from OCR text and preliminary structure.\n")
		b.WriteString("Return ONLY valid JSON matching the DocumentStructure shape. No commentary.\n")
		b.WriteString("Language: ")
		b.WriteString(language)
		b.WriteString("\n")
	}
	b.WriteString("OCR text:\n")
	b.WriteString(Truncate(text, budget))
	b.WriteString("\n\nPreliminary structure JSON:\n")
	b.WriteString(Truncate(string(structJSON), budget))
	b.WriteString("\n")
	return b.String()
}

// Truncate keeps at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
