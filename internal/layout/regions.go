package layout

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/imaging"
	"github.com/manekies/document-converter-app/internal/lang"
)

// TemplateMarker is stored in metadata.template for structures built from template regions.
const TemplateMarker = "custom"

// RegionRecognizer recognizes the text of one cropped region (PNG bytes).
type RegionRecognizer interface {
	RecognizeRegion(ctx context.Context, crop []byte) (text string, confidence float64, err error)
}

// AnalyzeRegions runs recognition on each named region instead of general layout analysis.
// A region that fails to crop or recognize is logged and skipped.
func (a *Analyzer) AnalyzeRegions(ctx context.Context, img []byte, regions []document.Region, rec RegionRecognizer) (document.RecognitionResult, error) {
	decoded, _, err := imaging.Decode(img)
	if err != nil {
		return document.RecognitionResult{}, err
	}
	bounds := decoded.Bounds()

	var (
		elements []document.Element
		text     strings.Builder
		confs    []float64
	)
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return document.RecognitionResult{}, err
		}
		rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
		crop, err := imaging.CropImagePNG(decoded, rect)
		if err != nil {
			a.logger.Warn("layout.region.crop_failed", "region", r.Name, "error", err)
			continue
		}
		got, conf, err := rec.RecognizeRegion(ctx, crop)
		if err != nil {
			a.logger.Warn("layout.region.recognize_failed", "region", r.Name, "error", err)
			continue
		}
		got = strings.TrimSpace(got)
		if got == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", r.Name, got)
		elements = append(elements, document.Element{
			Type:     document.KindParagraph,
			Content:  got,
			Field:    r.Name,
			Position: r.Position().Clamped(),
		})
		confs = append(confs, conf)
	}

	meta := document.NewMetadata(float64(bounds.Dx()), float64(bounds.Dy()))
	meta.Template = TemplateMarker
	if elements == nil {
		elements = []document.Element{}
	}
	combined := text.String()
	return document.RecognitionResult{
		Text:       strings.TrimSpace(combined),
		Structure:  document.Structure{Elements: elements, Metadata: meta},
		Language:   lang.DetectOr(combined, lang.Default),
		Confidence: MeanConfidence(confs),
	}, nil
}
