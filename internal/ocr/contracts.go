// Package ocr holds the recognition engine adapters: a local Tesseract engine,
// the OCR.Space cloud service and a self-hosted docTR service.
package ocr

import (
	"context"
	"strings"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/layout"
)

// DefaultLanguages is the hint set used when the caller gives none.
var DefaultLanguages = []string{"eng", "deu", "fra", "spa", "ita", "por", "rus"}

// Input is one page image handed to an engine.
type Input struct {
	Image     []byte
	MIMEType  string
	Languages []string
}

// Engine is the uniform recognition adapter contract.
// Recognize fails with common.ErrUnavailable when the engine is not configured
// and with common.ErrProvider when the call fails or the payload is malformed.
type Engine interface {
	Name() constants.Provider
	Available() bool
	Recognize(ctx context.Context, in Input) (document.RecognitionResult, error)
}

// RawPage is what a Tesseract backend reports for one image.
type RawPage struct {
	Text            string
	Lines           []layout.Line
	WordConfidences []float64
	Width           float64
	Height          float64
}

// Reader runs Tesseract over an image.
type Reader interface {
	Read(ctx context.Context, image []byte, languages []string) (RawPage, error)
}

// ResolveLanguages flattens "+"-joined hints and falls back to defaults when none remain.
func ResolveLanguages(hints, defaults []string) []string {
	var out []string
	for _, h := range hints {
		for _, l := range strings.Split(h, "+") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaults...)
	}
	return out
}

// LanguageArg renders languages in Tesseract's combined "eng+deu" form.
func LanguageArg(languages []string) string {
	return strings.Join(languages, "+")
}
