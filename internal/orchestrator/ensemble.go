package orchestrator

import (
	"math"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/document"
)

// DefaultTieWindow is the confidence gap within which the richer structure wins.
const DefaultTieWindow = 3.0

// Candidate is one engine's successful result.
type Candidate struct {
	Engine constants.Provider
	Result document.RecognitionResult
}

// SelectBest walks candidates in order. A candidate replaces the current best when its
// confidence is higher by more than window, or when the gap is within window and it has
// more elements. The comparison is pairwise against the running best, not a global sort.
func SelectBest(cands []Candidate, window float64) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		diff := c.Result.Confidence - best.Result.Confidence
		switch {
		case diff > window:
			best = c
		case math.Abs(diff) <= window && len(c.Result.Structure.Elements) > len(best.Result.Structure.Elements):
			best = c
		}
	}
	return best, true
}
