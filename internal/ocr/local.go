package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/imaging"
	"github.com/manekies/document-converter-app/internal/lang"
	"github.com/manekies/document-converter-app/internal/layout"
)

type LocalConfig struct {
	Languages []string      // default DefaultLanguages
	Timeout   time.Duration // 0 = bounded only by the caller
}

// LocalEngine runs Tesseract on the host and structures the result with the layout analyzer.
type LocalEngine struct {
	cfg      LocalConfig
	reader   Reader
	analyzer *layout.Analyzer
	logger   *slog.Logger
}

func NewLocalEngine(cfg LocalConfig, reader Reader, analyzer *layout.Analyzer, logger *slog.Logger) *LocalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages
	}
	if analyzer == nil {
		analyzer = layout.NewAnalyzer(layout.DefaultOptions(), logger)
	}
	return &LocalEngine{cfg: cfg, reader: reader, analyzer: analyzer, logger: logger}
}

func (e *LocalEngine) Name() constants.Provider { return constants.EngineTesseract }

// Available is always true; the engine needs no credentials.
func (e *LocalEngine) Available() bool { return true }

func (e *LocalEngine) Recognize(ctx context.Context, in Input) (document.RecognitionResult, error) {
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	langs := ResolveLanguages(in.Languages, e.cfg.Languages)
	start := time.Now()
	raw, err := e.reader.Read(ctx, in.Image, langs)
	if err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), err)
	}

	if raw.Width <= 0 || raw.Height <= 0 {
		if w, h, err := imaging.Dimensions(in.Image); err == nil {
			raw.Width, raw.Height = float64(w), float64(h)
		} else {
			e.logger.Debug("ocr.local.dimensions_unknown", "error", err)
		}
	}
	for i := range raw.Lines {
		raw.Lines[i].Text = norm.NFC.String(raw.Lines[i].Text)
	}

	structure, confidence := e.analyzer.Analyze(layout.Page{
		Lines:           raw.Lines,
		WordConfidences: raw.WordConfidences,
		Width:           raw.Width,
		Height:          raw.Height,
	})
	text := strings.TrimSpace(norm.NFC.String(raw.Text))

	e.logger.Debug("ocr.local.done",
		"languages", LanguageArg(langs),
		"lines", len(raw.Lines),
		"elements", len(structure.Elements),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return document.RecognitionResult{
		Text:       text,
		Structure:  structure,
		Language:   lang.DetectOr(text, lang.Default),
		Confidence: confidence,
	}, nil
}

// RecognizeRegions recognizes only the given template regions of the page.
func (e *LocalEngine) RecognizeRegions(ctx context.Context, in Input, regions []document.Region) (document.RecognitionResult, error) {
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	rec := regionReader{reader: e.reader, languages: ResolveLanguages(in.Languages, e.cfg.Languages)}
	res, err := e.analyzer.AnalyzeRegions(ctx, in.Image, regions, rec)
	if err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), err)
	}
	return res, nil
}

type regionReader struct {
	reader    Reader
	languages []string
}

func (r regionReader) RecognizeRegion(ctx context.Context, crop []byte) (string, float64, error) {
	raw, err := r.reader.Read(ctx, crop, r.languages)
	if err != nil {
		return "", 0, err
	}
	return norm.NFC.String(raw.Text), layout.MeanConfidence(raw.WordConfidences), nil
}
