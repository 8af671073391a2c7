package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/layout"
	"github.com/manekies/document-converter-app/internal/llm"
	"github.com/manekies/document-converter-app/internal/llm/chat"
	"github.com/manekies/document-converter-app/internal/llm/gemini"
	"github.com/manekies/document-converter-app/internal/llm/huggingface"
	"github.com/manekies/document-converter-app/internal/ocr"
	"github.com/manekies/document-converter-app/internal/orchestrator"
	"github.com/manekies/document-converter-app/internal/repository"
	"github.com/manekies/document-converter-app/internal/template"
)

// LayoutOptions maps the configured heuristics onto analyzer options.
func LayoutOptions(c common.LayoutConfig) layout.Options {
	return layout.Options{
		ColumnSlack:        c.ColumnSlack,
		MinGutter:          c.MinGutter,
		HeadingMaxLen:      c.HeadingMaxLen,
		HeadingShortLen:    c.HeadingShortLen,
		HeadingCapsRatio:   c.HeadingCapsRatio,
		TableMinCells:      c.TableMinCells,
		TableCellTolerance: c.TableCellTolerance,
	}.WithDefaults()
}

// NewReader selects the local Tesseract binding.
func NewReader(c common.OCRConfig, logger *slog.Logger) (ocr.Reader, error) {
	switch c.Backend {
	case "", "gosseract":
		return ocr.NewGosseractReader(c.TessdataDir), nil
	case "cli":
		// One OpenMP thread per process; parallelism comes from the worker pool.
		runner := ocr.ExecRunner{Logger: logger, Env: []string{"OMP_THREAD_LIMIT=1"}}
		return ocr.NewCLIReader(c.TesseractPath, c.TessdataDir, runner, logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", c.Backend)
	}
}

// BuildEngines constructs the recognition backends. Unconfigured remote engines are
// still returned and report themselves unavailable.
func BuildEngines(cfg *common.Config, logger *slog.Logger) (orchestrator.Engines, error) {
	reader, err := NewReader(cfg.OCR, logger)
	if err != nil {
		return orchestrator.Engines{}, err
	}
	opts := LayoutOptions(cfg.Layout)
	analyzer := layout.NewAnalyzer(opts, logger)
	return orchestrator.Engines{
		Local: ocr.NewLocalEngine(ocr.LocalConfig{
			Languages: cfg.OCR.Languages,
			Timeout:   cfg.OCR.Timeout,
		}, reader, analyzer, logger),
		Cloud: ocr.NewCloudEngine(ocr.CloudConfig{
			APIKey:  cfg.OCR.OCRSpaceKey,
			URL:     cfg.OCR.OCRSpaceURL,
			Timeout: cfg.OCR.Timeout,
			Layout:  opts,
		}, logger),
		SelfHosted: ocr.NewSelfHostedEngine(ocr.SelfHostedConfig{
			BaseURL: cfg.OCR.DocTREndpoint,
			Token:   cfg.OCR.DocTRToken,
			Timeout: cfg.OCR.Timeout,
		}, logger),
	}, nil
}

// BuildRefiners returns the cascade in order: Gemini, Groq, then the reservoir.
func BuildRefiners(cfg common.RefineConfig, logger *slog.Logger) ([]llm.Refiner, error) {
	primary := gemini.New(gemini.Config{
		APIKey:  cfg.GoogleAIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.Timeout,
	}, logger)

	secondary, err := chat.New(chat.Groq(cfg.GroqKey, cfg.GroqBaseURL, cfg.GroqModel, cfg.Timeout), logger)
	if err != nil {
		return nil, err
	}

	members := make([]llm.Refiner, 0, len(cfg.Reservoir))
	for _, p := range cfg.Reservoir {
		m, err := reservoirMember(p, cfg, logger)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return []llm.Refiner{primary, secondary, llm.NewReservoir(members, logger)}, nil
}

func reservoirMember(p common.ReservoirProvider, cfg common.RefineConfig, logger *slog.Logger) (llm.Refiner, error) {
	name := constants.Provider(p.Name)
	if p.Kind == "huggingface" {
		return huggingface.New(huggingface.Config{
			Name:    name,
			Token:   p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	}
	return chat.New(chat.Config{
		Name:    name,
		Kind:    p.Kind,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		APIKey:  p.APIKey,
		Style:   llm.PromptReservoir,
		Timeout: cfg.Timeout,
	}, logger)
}

// NewOrchestrator builds engines and refiners from cfg.
func NewOrchestrator(cfg *common.Config, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	engines, err := BuildEngines(cfg, logger)
	if err != nil {
		return nil, err
	}
	refiners, err := BuildRefiners(cfg.Refine, logger)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Config{
		LocalSizeLimit: cfg.Routing.LocalSizeLimit,
		TieWindow:      cfg.Routing.TieWindow,
	}, engines, refiners, logger)
}

// Runtime is the fully wired conversion stack shared by the daemon and the CLI.
type Runtime struct {
	DB           *repository.DB
	Templates    repository.TemplateRepository
	Runs         repository.RunRepository
	Matcher      *template.Matcher
	Orchestrator *orchestrator.Orchestrator
	Service      *Service
}

// Open connects the database, applies the schema and wires every backend from cfg.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	orch, err := NewOrchestrator(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	templates := repository.NewTemplateRepository(db, logger)
	runs := repository.NewRunRepository(db, logger)
	matcher := template.NewMatcher(templates, logger, template.WithThreshold(cfg.Routing.MatchThreshold))
	heic := ocr.NewHEICConverter(cfg.OCR.HEICConverter, ocr.ExecRunner{Logger: logger}, logger)
	return &Runtime{
		DB:           db,
		Templates:    templates,
		Runs:         runs,
		Matcher:      matcher,
		Orchestrator: orch,
		Service:      NewService(orch, matcher, runs, logger, WithHEICConverter(heic)),
	}, nil
}

func (r *Runtime) Close() {
	r.DB.Close()
}
