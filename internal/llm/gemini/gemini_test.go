package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

func TestRefineUnavailableWithoutKey(t *testing.T) {
	called := false
	r := New(Config{}, nil, WithGenerateFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}))
	_, err := r.Refine(context.Background(), "x", document.Structure{}, "en")
	if !common.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if called {
		t.Error("generator must not be called when unavailable")
	}
}

func TestRefine(t *testing.T) {
	var prompt string
	r := New(Config{APIKey: "k", Budget: 10}, nil, WithGenerateFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "```json\n{\"elements\":[{\"type\":\"title\",\"content\":\"Report\"}],\"metadata\":{\"pageCount\":1}}\n```", nil
	}))
	text := strings.Repeat("a", 50)
	out, err := r.Refine(context.Background(), text, document.Structure{}, "de")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out.Text != text {
		t.Error("refinement must keep the original text")
	}
	if len(out.Structure.Elements) != 1 || out.Structure.Elements[0].Type != document.KindHeading {
		t.Errorf("structure = %+v", out.Structure)
	}
	if strings.Contains(prompt, strings.Repeat("a", 11)) {
		t.Error("prompt text must be truncated to the budget")
	}
	if !strings.Contains(prompt, "Preserve language: de") {
		t.Error("prompt must carry the language")
	}
}

func TestRefineErrors(t *testing.T) {
	tests := map[string]struct {
		answer string
		err    error
		want   error
	}{
		"transport": {err: errors.New("503"), want: common.ErrProvider},
		"no json":   {answer: "sorry, I cannot help", want: common.ErrParse},
		"bad json":  {answer: "{not json}", want: common.ErrParse},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := New(Config{APIKey: "k"}, nil, WithGenerateFunc(func(context.Context, string) (string, error) {
				return tt.answer, tt.err
			}))
			_, err := r.Refine(context.Background(), "x", document.Structure{}, "en")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
