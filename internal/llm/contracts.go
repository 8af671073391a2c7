package llm

import (
	"context"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/document"
)

// Refined is the output of a refinement backend. Text is carried through unchanged;
// Structure is the backend's parsed reconstruction.
type Refined struct {
	Text      string
	Structure document.Structure
}

// Refiner is the interface the orchestrator depends on for semantic refinement.
// Available must be cheap and side-effect free; Refine fails with common.ErrUnavailable
// when not configured, common.ErrProvider on transport failure and common.ErrParse when
// the answer holds no usable structure.
type Refiner interface {
	Name() constants.Provider
	Available() bool
	Refine(ctx context.Context, text string, structure document.Structure, language string) (Refined, error)
}
