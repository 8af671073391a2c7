package llm

import (
	"errors"
	"regexp"
	"strings"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

var (
	reFence = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

	ErrNoJSON = errors.New("no JSON found in LLM response")
)

// ExtractJSON returns the JSON object embedded in a model answer. A markdown fence is
// stripped first, then the span from the first '{' to the last '}' is taken.
func ExtractJSON(s string) (string, error) {
	raw := s
	if m := reFence.FindStringSubmatch(s); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSON
	}
	return raw[start : end+1], nil
}

// ParseAnswer turns a raw model answer into a structure, leniently repairing common
// deviations before schema validation. Every failure is a common.ErrParse.
func ParseAnswer(answer string) (document.Structure, error) {
	js, err := ExtractJSON(answer)
	if err != nil {
		return document.Structure{}, common.ParseError(err)
	}
	cleaned, _, err := SanitizeStructureJSON([]byte(js), nil)
	if err != nil {
		return document.Structure{}, common.ParseError(err)
	}
	s, err := document.Parse(cleaned)
	if err != nil {
		return document.Structure{}, common.ParseError(err)
	}
	return s, nil
}
