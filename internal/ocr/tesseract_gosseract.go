package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/manekies/document-converter-app/internal/layout"
)

// GosseractReader drives libtesseract in-process through gosseract.
// A fresh client is created per call; clients are not safe for concurrent use.
type GosseractReader struct {
	TessdataDir string
	recognize   func(image []byte, languages []string) (RawPage, error)
}

func NewGosseractReader(tessdataDir string) *GosseractReader {
	r := &GosseractReader{TessdataDir: tessdataDir}
	r.recognize = r.readPage
	return r
}

type pageOutcome struct {
	page RawPage
	err  error
}

// Read returns when recognition finishes or ctx is done. libtesseract calls cannot be
// interrupted, so on cancellation the page is abandoned and its goroutine runs to completion.
func (r *GosseractReader) Read(ctx context.Context, image []byte, languages []string) (RawPage, error) {
	if err := ctx.Err(); err != nil {
		return RawPage{}, err
	}
	done := make(chan pageOutcome, 1)
	go func() {
		page, err := r.recognize(image, languages)
		done <- pageOutcome{page: page, err: err}
	}()
	select {
	case out := <-done:
		return out.page, out.err
	case <-ctx.Done():
		return RawPage{}, fmt.Errorf("tesseract abandoned: %w", ctx.Err())
	}
}

func (r *GosseractReader) readPage(image []byte, languages []string) (RawPage, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if r.TessdataDir != "" {
		if err := c.SetTessdataPrefix(r.TessdataDir); err != nil {
			return RawPage{}, fmt.Errorf("tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(languages...); err != nil {
		return RawPage{}, fmt.Errorf("set language: %w", err)
	}
	// Keep runs of spaces between words so table rows stay splittable.
	if err := c.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return RawPage{}, fmt.Errorf("set variable: %w", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return RawPage{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return RawPage{}, fmt.Errorf("recognize: %w", err)
	}
	lineBoxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return RawPage{}, fmt.Errorf("line boxes: %w", err)
	}
	wordBoxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return RawPage{}, fmt.Errorf("word boxes: %w", err)
	}

	page := RawPage{Text: text}
	for _, b := range lineBoxes {
		page.Lines = append(page.Lines, layout.Line{
			Text: strings.TrimSpace(b.Word),
			X0:   float64(b.Box.Min.X),
			Y0:   float64(b.Box.Min.Y),
			X1:   float64(b.Box.Max.X),
			Y1:   float64(b.Box.Max.Y),
		})
	}
	for _, b := range wordBoxes {
		if strings.TrimSpace(b.Word) != "" && b.Confidence >= 0 {
			page.WordConfidences = append(page.WordConfidences, b.Confidence)
		}
	}
	return page, nil
}
