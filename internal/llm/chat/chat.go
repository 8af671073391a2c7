package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/llm"
)

// Backend kinds accepted in Config.Kind.
const (
	KindOpenAI    = "openai"
	KindOllama    = "ollama"
	KindAnthropic = "anthropic"
	KindMistral   = "mistral"
)

// Config for a chat-completion refiner. OpenAI-compatible kinds cover Groq, Together
// and OpenRouter through BaseURL.
type Config struct {
	Name        constants.Provider
	Kind        string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Style       llm.PromptStyle
	Budget      int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Refiner refines through any langchaingo chat model.
type Refiner struct {
	cfg    Config
	model  llms.Model
	logger *slog.Logger
}

// New builds the langchaingo model for cfg. Missing credentials are not an error: the
// refiner is returned unavailable.
func New(cfg Config, logger *slog.Logger) (*Refiner, error) {
	cfg = withDefaults(cfg)
	if !configured(cfg) {
		return NewWithModel(cfg, nil, logger), nil
	}
	model, err := newModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", cfg.Name, err)
	}
	return NewWithModel(cfg, model, logger), nil
}

// NewWithModel wraps an existing model; a nil model makes the refiner unavailable.
func NewWithModel(cfg Config, model llms.Model, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{cfg: withDefaults(cfg), model: model, logger: logger}
}

// Groq returns the secondary refiner configuration.
func Groq(apiKey, baseURL, model string, timeout time.Duration) Config {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return Config{
		Name:    constants.RefinerGroq,
		Kind:    KindOpenAI,
		BaseURL: baseURL,
		Model:   model,
		APIKey:  apiKey,
		Style:   llm.PromptCompact,
		Timeout: timeout,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Kind == "" {
		cfg.Kind = KindOpenAI
	}
	if cfg.Name == "" {
		cfg.Name = constants.Provider(cfg.Kind)
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Budget <= 0 {
		cfg.Budget = cfg.Style.Budget()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return cfg
}

func configured(cfg Config) bool {
	if cfg.Kind == KindOllama {
		return cfg.BaseURL != ""
	}
	return cfg.APIKey != ""
}

func newModel(cfg Config) (llms.Model, error) {
	switch cfg.Kind {
	case KindOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(cfg.HTTPClient))
		}
		return openai.New(opts...)
	case KindOllama:
		return ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	case KindAnthropic:
		return anthropic.New(
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		)
	case KindMistral:
		return mistral.New(
			mistral.WithModel(cfg.Model),
			mistral.WithAPIKey(cfg.APIKey),
		)
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}

func (r *Refiner) Name() constants.Provider { return r.cfg.Name }

func (r *Refiner) Available() bool { return r.model != nil }

func (r *Refiner) Refine(ctx context.Context, text string, structure document.Structure, language string) (llm.Refined, error) {
	if !r.Available() {
		return llm.Refined{}, common.Unavailable(string(r.cfg.Name))
	}
	ctx, cancel := common.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	prompt := llm.BuildPrompt(r.cfg.Style, text, structure, language, r.cfg.Budget)
	resp, err := r.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(llm.SystemMessage)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}, llms.WithTemperature(r.cfg.Temperature), llms.WithMaxTokens(r.cfg.MaxTokens))
	if err != nil {
		r.logger.Warn("llm.chat.generate_failed", "provider", r.cfg.Name, "model", r.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Refined{}, common.ProviderError(string(r.cfg.Name), err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return llm.Refined{}, common.ProviderError(string(r.cfg.Name), errors.New("no choices in response"))
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	refined, err := llm.ParseAnswer(answer)
	if err != nil {
		r.logger.Warn("llm.chat.parse_failed", "provider", r.cfg.Name, "error", err, "answer_bytes", len(answer))
		return llm.Refined{}, err
	}
	r.logger.Info("llm.chat.ok", "provider", r.cfg.Name, "model", r.cfg.Model,
		"elements", len(refined.Elements), "elapsed_ms", time.Since(start).Milliseconds())
	return llm.Refined{Text: text, Structure: refined}, nil
}
