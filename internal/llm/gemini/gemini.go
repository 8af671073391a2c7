package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/llm"
)

const DefaultModel = "gemini-2.0-flash-exp"

// Config for the Gemini refiner. An empty APIKey leaves the refiner unavailable.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Budget      int
}

// GenerateFunc sends one prompt and returns the model's text answer.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Refiner is the primary refinement backend.
type Refiner struct {
	cfg      Config
	generate GenerateFunc
	logger   *slog.Logger
}

type Option func(*Refiner)

// WithGenerateFunc replaces the SDK call, mainly for tests.
func WithGenerateFunc(fn GenerateFunc) Option {
	return func(r *Refiner) {
		if fn != nil {
			r.generate = fn
		}
	}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Refiner {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Budget <= 0 {
		cfg.Budget = llm.DetailedBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refiner{cfg: cfg, logger: logger}
	r.generate = r.sdkGenerate
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Refiner) Name() constants.Provider { return constants.RefinerGemini }

func (r *Refiner) Available() bool { return r.cfg.APIKey != "" }

func (r *Refiner) Refine(ctx context.Context, text string, structure document.Structure, language string) (llm.Refined, error) {
	if !r.Available() {
		return llm.Refined{}, common.Unavailable(string(r.Name()))
	}
	ctx, cancel := common.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	prompt := llm.BuildPrompt(llm.PromptDetailed, text, structure, language, r.cfg.Budget)
	answer, err := r.generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("llm.gemini.generate_failed", "model", r.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Refined{}, common.ProviderError(string(r.Name()), err)
	}
	refined, err := llm.ParseAnswer(answer)
	if err != nil {
		r.logger.Warn("llm.gemini.parse_failed", "error", err, "answer_bytes", len(answer))
		return llm.Refined{}, err
	}
	r.logger.Info("llm.gemini.ok", "model", r.cfg.Model, "elements", len(refined.Elements),
		"elapsed_ms", time.Since(start).Milliseconds())
	return llm.Refined{Text: text, Structure: refined}, nil
}

func (r *Refiner) sdkGenerate(ctx context.Context, prompt string) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(r.cfg.APIKey))
	if err != nil {
		return "", err
	}
	defer func() { _ = cl.Close() }()

	m := cl.GenerativeModel(r.cfg.Model)
	temp := r.cfg.Temperature
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", errors.New("empty response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
