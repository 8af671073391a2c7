package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/ocr"
	"github.com/manekies/document-converter-app/internal/orchestrator"
	"github.com/manekies/document-converter-app/internal/repository"
	"github.com/manekies/document-converter-app/internal/template"
)

// Processor is the recognition core the service drives.
type Processor interface {
	Process(ctx context.Context, image []byte, mimeType string, opts orchestrator.Options) (*orchestrator.Result, error)
}

// TemplateMatcher finds the stored template for a page, or nil.
type TemplateMatcher interface {
	FindMatchingTemplate(ctx context.Context, image []byte) *template.Template
}

// Request is one page to convert.
type Request struct {
	DocumentID string
	Source     string
	Image      []byte
	MIMEType   string
	Mode       constants.Mode
	Quality    constants.Quality
	Languages  []string
	// Regions forces region mode; when empty the template matcher may supply them.
	Regions       []document.Region
	SkipTemplates bool
}

// Response is the orchestrator result plus the run bookkeeping.
type Response struct {
	*orchestrator.Result
	DocumentID string
	RunID      string
	Template   *template.Template
	Duration   time.Duration
}

// Service matches templates, runs the orchestrator and records a processing run per request.
type Service struct {
	proc    Processor
	matcher TemplateMatcher
	runs    repository.RunRepository
	heic    *ocr.HEICConverter
	logger  *slog.Logger
}

type ServiceOption func(*Service)

// WithHEICConverter converts HEIC/HEIF uploads to PNG before recognition.
func WithHEICConverter(c *ocr.HEICConverter) ServiceOption {
	return func(s *Service) {
		s.heic = c
	}
}

// NewService wires the service. matcher and runs may be nil.
func NewService(proc Processor, matcher TemplateMatcher, runs repository.RunRepository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{proc: proc, matcher: matcher, runs: runs, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process converts one page.
func (s *Service) Process(ctx context.Context, req Request) (*Response, error) {
	if len(req.Image) == 0 {
		return nil, common.NewAppError("INVALID_INPUT", "image is empty", common.ErrInvalidInput)
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.New().String()
	}
	if req.Mode == "" {
		req.Mode = constants.ModeAuto
	}
	if req.Quality == "" {
		req.Quality = constants.QualityFast
	}
	if req.MIMEType == "" {
		req.MIMEType = detectMIME(req.Source, req.Image)
	}
	ctx = common.WithDocumentID(ctx, req.DocumentID)
	start := time.Now()

	if ocr.IsHEIC(req.MIMEType) {
		png, err := s.heic.ToPNG(ctx, req.Image)
		if err != nil {
			return nil, common.NewAppError("INVALID_INPUT", "HEIC conversion", errors.Join(common.ErrInvalidInput, err))
		}
		req.Image, req.MIMEType = png, "image/png"
	}

	var tpl *template.Template
	regions := req.Regions
	if len(regions) == 0 && !req.SkipTemplates && s.matcher != nil {
		if tpl = s.matcher.FindMatchingTemplate(ctx, req.Image); tpl != nil {
			regions = tpl.Regions
			s.logger.Info("pipeline.template.matched", "document_id", req.DocumentID, "template", tpl.Name)
		}
	}

	res, err := s.proc.Process(ctx, req.Image, req.MIMEType, orchestrator.Options{
		Mode:      req.Mode,
		Quality:   req.Quality,
		Languages: req.Languages,
		Regions:   regions,
	})
	elapsed := time.Since(start)

	runID := s.record(ctx, req, tpl, res, err, start, elapsed)
	if err != nil {
		s.logger.Error("pipeline.process.failed", "document_id", req.DocumentID, "source", req.Source, "error", err)
		return nil, err
	}
	s.logger.Info("pipeline.process.ok",
		"document_id", req.DocumentID,
		"engine", res.Engine,
		"refiner", res.Refiner,
		"confidence", res.Confidence,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return &Response{Result: res, DocumentID: req.DocumentID, RunID: runID, Template: tpl, Duration: elapsed}, nil
}

// ProcessFile reads a page image from disk and converts it.
func (s *Service) ProcessFile(ctx context.Context, path string, req Request) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "read "+path, errors.Join(common.ErrInvalidInput, err))
	}
	req.Image = data
	req.Source = path
	if req.MIMEType == "" {
		req.MIMEType = constants.MIMETypeForPath(path)
	}
	return s.Process(ctx, req)
}

func (s *Service) record(ctx context.Context, req Request, tpl *template.Template, res *orchestrator.Result, procErr error, start time.Time, elapsed time.Duration) string {
	if s.runs == nil {
		return ""
	}
	run := repository.Run{
		DocumentID: req.DocumentID,
		Source:     req.Source,
		Mode:       req.Mode,
		Quality:    req.Quality,
		Duration:   elapsed,
		StartedAt:  start,
		Status:     constants.RunStatusCompleted,
	}
	if run.Source != "" {
		run.Source = filepath.Base(run.Source)
	}
	if tpl != nil {
		run.TemplateID = tpl.ID
	}
	if procErr != nil {
		run.Status = constants.RunStatusFailed
		run.Error = procErr.Error()
	} else {
		run.Engine = res.Engine
		run.Refiner = res.Refiner
		run.Language = res.Language
		run.Confidence = res.Confidence
		run.TextLength = len([]rune(res.Text))
		run.ElementCount = len(res.Structure.Elements)
	}
	// a finished conversion is still returned when telemetry cannot be written
	rec, err := s.runs.Record(context.WithoutCancel(ctx), run)
	if err != nil {
		s.logger.Warn("pipeline.run.record_failed", "document_id", req.DocumentID, "error", err)
		return ""
	}
	return rec.ID
}

func detectMIME(source string, image []byte) string {
	if source != "" {
		if m := constants.MIMETypeForPath(source); m != "application/octet-stream" {
			return m
		}
	}
	return http.DetectContentType(image)
}
