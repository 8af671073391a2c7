package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/lang"
)

type SelfHostedConfig struct {
	BaseURL    string // e.g. http://doctr:8000
	Token      string // optional bearer token
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SelfHostedEngine delegates recognition to a docTR service exposing POST /ocr.
type SelfHostedEngine struct {
	cfg    SelfHostedConfig
	logger *slog.Logger
}

func NewSelfHostedEngine(cfg SelfHostedConfig, logger *slog.Logger) *SelfHostedEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SelfHostedEngine{cfg: cfg, logger: logger}
}

func (e *SelfHostedEngine) Name() constants.Provider { return constants.EngineDocTR }

func (e *SelfHostedEngine) Available() bool { return e.cfg.BaseURL != "" }

type docTRResponse struct {
	Text       *string         `json:"text"`
	Structure  json.RawMessage `json:"structure"`
	Language   string          `json:"language"`
	Confidence *float64        `json:"confidence"`
}

func (e *SelfHostedEngine) Recognize(ctx context.Context, in Input) (document.RecognitionResult, error) {
	if !e.Available() {
		return document.RecognitionResult{}, common.Unavailable(string(e.Name()))
	}
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	headers := map[string]string{}
	if e.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + e.cfg.Token
	}
	raw, _, err := postMultipart(ctx, e.cfg.HTTPClient, upload{
		URL:       e.cfg.BaseURL + "/ocr",
		FileField: "file",
		FileName:  "image",
		MIMEType:  in.MIMEType,
		Data:      in.Image,
		Headers:   headers,
	}, e.logger)
	if err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), err)
	}

	var resp docTRResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), fmt.Errorf("decode response: %w", err))
	}
	if resp.Text == nil || len(resp.Structure) == 0 || string(resp.Structure) == "null" {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), errors.New("malformed response: text and structure are required"))
	}
	structure, err := document.Parse(resp.Structure)
	if err != nil {
		return document.RecognitionResult{}, common.ProviderError(string(e.Name()), fmt.Errorf("malformed structure: %w", err))
	}

	result := document.RecognitionResult{
		Text:      *resp.Text,
		Structure: structure,
		Language:  resp.Language,
	}
	if result.Language == "" {
		result.Language = lang.Default
	}
	if resp.Confidence != nil {
		result.Confidence = *resp.Confidence
	}
	return result, nil
}
