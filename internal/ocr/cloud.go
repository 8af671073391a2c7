package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/lang"
	"github.com/manekies/document-converter-app/internal/layout"
)

const defaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// Geometry used for the naive per-line structure; the service reports no boxes.
const (
	cloudMarginX    = 50
	cloudMarginY    = 50
	cloudLineWidth  = 500
	cloudLineHeight = 20
)

type CloudConfig struct {
	APIKey     string
	URL        string // default OCR.Space parse endpoint
	Timeout    time.Duration
	HTTPClient *http.Client
	Layout     layout.Options
}

// CloudEngine calls the OCR.Space parse API.
type CloudEngine struct {
	cfg    CloudConfig
	logger *slog.Logger
}

func NewCloudEngine(cfg CloudConfig, logger *slog.Logger) *CloudEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = defaultOCRSpaceURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.Layout = cfg.Layout.WithDefaults()
	return &CloudEngine{cfg: cfg, logger: logger}
}

func (e *CloudEngine) Name() constants.Provider { return constants.EngineOCRSpace }

func (e *CloudEngine) Available() bool { return e.cfg.APIKey != "" }

type ocrSpaceResponse struct {
	OCRExitCode   int             `json:"OCRExitCode"`
	ErrorMessage  json.RawMessage `json:"ErrorMessage"`
	ErrorDetails  json.RawMessage `json:"ErrorDetails"`
	ParsedResults []struct {
		ParsedText     string  `json:"ParsedText"`
		MeanConfidence float64 `json:"MeanConfidence"`
	} `json:"ParsedResults"`
}

var reNewline = regexp.MustCompile(`\r?\n`)

func (e *CloudEngine) Recognize(ctx context.Context, in Input) (document.RecognitionResult, error) {
	if !e.Available() {
		return document.RecognitionResult{}, common.Unavailable(string(e.Name()))
	}
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	code := "eng"
	if langs := ResolveLanguages(in.Languages, nil); len(langs) > 0 {
		code = strings.ToLower(langs[0])
	}

	raw, _, err := postMultipart(ctx, e.cfg.HTTPClient, upload{
		URL:       e.cfg.URL,
		FileField: "file",
		FileName:  "image",
		MIMEType:  in.MIMEType,
		Data:      in.Image,
		Fields: map[string]string{
			"OCREngine":         "2",
			"scale":             "true",
			"isTable":           "true",
			"detectOrientation": "true",
			"language":          code,
		},
		Headers: map[string]string{"apikey": e.cfg.APIKey},
	}, e.logger)
	if err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), err)
	}

	var resp ocrSpaceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), fmt.Errorf("decode response: %w", err))
	}
	if resp.OCRExitCode != 1 {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), errors.New(serviceMessage(resp)))
	}

	var text string
	var confidence float64
	if len(resp.ParsedResults) > 0 {
		text = norm.NFC.String(resp.ParsedResults[0].ParsedText)
		confidence = resp.ParsedResults[0].MeanConfidence
	}
	return document.RecognitionResult{
		Text:       text,
		Structure:  e.lineStructure(text),
		Language:   lang.FromEngineCode(code),
		Confidence: confidence,
	}, nil
}

// lineStructure classifies each non-empty line on its own, stacking the lines top to bottom.
func (e *CloudEngine) lineStructure(text string) document.Structure {
	o := e.cfg.Layout
	elements := []document.Element{}
	for _, l := range reNewline.Split(text, -1) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		y := float64(cloudMarginY + len(elements)*cloudLineHeight)
		line := layout.Line{Text: l, X0: cloudMarginX, Y0: y, X1: cloudMarginX + cloudLineWidth, Y1: y + cloudLineHeight}
		switch {
		case layout.IsListItem(l):
			elements = append(elements, document.Element{Type: document.KindList, Content: l, Position: line.Position()})
		case o.IsHeading(l):
			elements = append(elements, document.Element{
				Type:     document.KindHeading,
				Content:  layout.HeadingText(l),
				Level:    o.HeadingLevel(l),
				Position: line.Position(),
				Style:    document.Style{FontWeight: "bold", FontSize: 18},
			})
		default:
			elements = append(elements, layout.ParagraphElement(line))
		}
	}
	return document.Structure{
		Elements: elements,
		Metadata: document.NewMetadata(layout.DefaultPageWidth, layout.DefaultPageHeight),
	}
}

func serviceMessage(resp ocrSpaceResponse) string {
	for _, raw := range []json.RawMessage{resp.ErrorMessage, resp.ErrorDetails} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
		return string(raw)
	}
	return fmt.Sprintf("OCR.Space exit code %d", resp.OCRExitCode)
}
