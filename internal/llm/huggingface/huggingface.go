package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/llm"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co/models"
	DefaultModel   = "mistralai/Mixtral-8x7B-Instruct-v0.1"
)

// Config for the Hugging Face Inference API text-generation refiner.
type Config struct {
	Name       constants.Provider
	Token      string
	BaseURL    string
	Model      string
	Budget     int
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Refiner struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Refiner {
	if cfg.Name == "" {
		cfg.Name = "huggingface"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Budget <= 0 {
		cfg.Budget = llm.ReservoirBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Refiner{cfg: cfg, client: client, logger: logger}
}

func (r *Refiner) Name() constants.Provider { return r.cfg.Name }

func (r *Refiner) Available() bool { return r.cfg.Token != "" }

type parameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

func (r *Refiner) Refine(ctx context.Context, text string, structure document.Structure, language string) (llm.Refined, error) {
	if !r.Available() {
		return llm.Refined{}, common.Unavailable(string(r.cfg.Name))
	}
	ctx, cancel := common.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	prompt := llm.BuildPrompt(llm.PromptReservoir, text, structure, language, r.cfg.Budget)
	body := request{
		Inputs:     llm.SystemMessage + "\n" + prompt,
		Parameters: parameters{MaxNewTokens: 4000, Temperature: 0.2, ReturnFullText: false},
	}
	url := strings.TrimRight(r.cfg.BaseURL, "/") + "/" + r.cfg.Model
	raw, err := llm.PostJSON(ctx, r.client, url, body, map[string]string{
		"Authorization": "Bearer " + r.cfg.Token,
	}, r.logger)
	if err != nil {
		if llm.IsStatus(err, http.StatusServiceUnavailable) {
			r.logger.Warn("llm.huggingface.model_loading", "model", r.cfg.Model)
		}
		return llm.Refined{}, common.ProviderError(string(r.cfg.Name), err)
	}

	answer, err := generatedText(raw)
	if err != nil {
		return llm.Refined{}, common.ProviderError(string(r.cfg.Name), err)
	}
	refined, err := llm.ParseAnswer(answer)
	if err != nil {
		r.logger.Warn("llm.huggingface.parse_failed", "model", r.cfg.Model, "error", err)
		return llm.Refined{}, err
	}
	return llm.Refined{Text: text, Structure: refined}, nil
}

// generatedText accepts both the list and the single-object response shapes.
func generatedText(raw []byte) (string, error) {
	var list []generation
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("empty generation list")
		}
		return list[0].GeneratedText, nil
	}
	var one generation
	if err := json.Unmarshal(raw, &one); err != nil {
		return "", err
	}
	return one.GeneratedText, nil
}
