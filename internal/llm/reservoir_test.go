package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

type fakeRefiner struct {
	name      constants.Provider
	available bool
	err       error
	calls     int
}

func (f *fakeRefiner) Name() constants.Provider { return f.name }
func (f *fakeRefiner) Available() bool          { return f.available }
func (f *fakeRefiner) Refine(_ context.Context, text string, _ document.Structure, _ string) (Refined, error) {
	f.calls++
	if !f.available {
		return Refined{}, common.Unavailable(string(f.name))
	}
	if f.err != nil {
		return Refined{}, f.err
	}
	return Refined{Text: text, Structure: document.Structure{
		Elements: []document.Element{{Type: document.KindParagraph, Content: string(f.name)}},
	}}, nil
}

func TestReservoirOrder(t *testing.T) {
	together := &fakeRefiner{name: "together", available: true, err: common.ProviderError("together", errors.New("500"))}
	openrouter := &fakeRefiner{name: "openrouter"}
	hf := &fakeRefiner{name: "huggingface", available: true}
	ollama := &fakeRefiner{name: "ollama", available: true}

	r := NewReservoir([]Refiner{together, openrouter, nil, hf, ollama}, nil)
	if !r.Available() || len(r.Members()) != 4 {
		t.Fatalf("reservoir members = %d", len(r.Members()))
	}
	out, err := r.Refine(context.Background(), "t", document.Structure{}, "en")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out.Structure.Elements[0].Content != "huggingface" {
		t.Errorf("winner = %s, want huggingface", out.Structure.Elements[0].Content)
	}
	if together.calls != 1 || openrouter.calls != 0 || ollama.calls != 0 {
		t.Errorf("calls together=%d openrouter=%d ollama=%d", together.calls, openrouter.calls, ollama.calls)
	}
}

func TestReservoirUnavailable(t *testing.T) {
	tests := map[string][]Refiner{
		"empty":          nil,
		"none available": {&fakeRefiner{name: "together"}},
		"all failed": {
			&fakeRefiner{name: "together", available: true, err: common.ParseError(ErrNoJSON)},
			&fakeRefiner{name: "ollama", available: true, err: common.ProviderError("ollama", errors.New("refused"))},
		},
	}
	for name, members := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewReservoir(members, nil).Refine(context.Background(), "t", document.Structure{}, "en")
			if !common.IsUnavailable(err) {
				t.Errorf("err = %v, want unavailable", err)
			}
		})
	}
}
