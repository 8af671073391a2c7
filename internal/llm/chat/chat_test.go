package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/llm"
)

type fakeModel struct {
	answer   string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGroqConfig(t *testing.T) {
	cfg := Groq("k", "", "", 0)
	if cfg.Name != constants.RefinerGroq || cfg.Model != "llama-3.3-70b-versatile" || cfg.Style != llm.PromptCompact {
		t.Errorf("config = %+v", cfg)
	}
	r := NewWithModel(cfg, nil, nil)
	if r.Available() {
		t.Error("refiner without model must be unavailable")
	}
	if _, err := r.Refine(context.Background(), "x", document.Structure{}, "en"); !common.IsUnavailable(err) {
		t.Errorf("err = %v", err)
	}
}

func TestNewWithoutCredentials(t *testing.T) {
	for _, kind := range []string{KindOpenAI, KindOllama, KindAnthropic, KindMistral} {
		r, err := New(Config{Kind: kind}, nil)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if r.Available() {
			t.Errorf("%s without credentials must be unavailable", kind)
		}
	}
}

func TestRefine(t *testing.T) {
	m := &fakeModel{answer: `Here you go: {"elements":[{"type":"paragraph","content":"Hallo Welt"}],"metadata":{}} hope it helps`}
	r := NewWithModel(Groq("k", "", "", 0), m, nil)

	out, err := r.Refine(context.Background(), "Hallo Wlet", document.Structure{}, "de")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out.Text != "Hallo Wlet" || len(out.Structure.Elements) != 1 || out.Structure.Elements[0].Content != "Hallo Welt" {
		t.Errorf("refined = %+v", out)
	}
	if len(m.messages) != 2 || m.messages[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("messages = %+v", m.messages)
	}
	if m.opts.Temperature != 0.2 || m.opts.MaxTokens != 4000 {
		t.Errorf("call options = %+v", m.opts)
	}
}

func TestRefineErrors(t *testing.T) {
	tests := map[string]struct {
		model *fakeModel
		want  error
	}{
		"transport": {&fakeModel{err: errors.New("429 rate limited")}, common.ErrProvider},
		"no json":   {&fakeModel{answer: "I am unable to comply."}, common.ErrParse},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewWithModel(Config{Name: "together", APIKey: "k"}, tt.model, nil)
			_, err := r.Refine(context.Background(), "x", document.Structure{}, "en")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
