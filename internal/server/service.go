package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/imaging"
	"github.com/manekies/document-converter-app/internal/pipeline"
	"github.com/manekies/document-converter-app/internal/repository"
	"github.com/manekies/document-converter-app/internal/template"
)

// Processor runs one conversion; *pipeline.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// Matcher resolves a page image to a stored template; *template.Matcher satisfies it.
type Matcher interface {
	Match(ctx context.Context, image []byte) (*template.Template, error)
}

// Service implements DocumentConverterServer.
type Service struct {
	proc      Processor
	matcher   Matcher
	templates repository.TemplateRepository
	runs      repository.RunRepository
	logger    *slog.Logger
}

func NewService(proc Processor, matcher Matcher, templates repository.TemplateRepository, runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, matcher: matcher, templates: templates, runs: runs, logger: logger}
}

// ProcessRequest is the JSON shape of a Process call. Image is base64.
type ProcessRequest struct {
	DocumentID    string            `json:"document_id,omitempty"`
	Source        string            `json:"source,omitempty"`
	Image         []byte            `json:"image"`
	MIMEType      string            `json:"mime_type,omitempty"`
	Mode          string            `json:"mode,omitempty"`
	Quality       string            `json:"quality,omitempty"`
	Languages     []string          `json:"languages,omitempty"`
	Regions       []document.Region `json:"regions,omitempty"`
	SkipTemplates bool              `json:"skip_templates,omitempty"`
}

// ProcessReply is the JSON shape of a Process answer.
type ProcessReply struct {
	DocumentID string             `json:"document_id"`
	RunID      string             `json:"run_id,omitempty"`
	Text       string             `json:"text"`
	Structure  document.Structure `json:"structure"`
	Language   string             `json:"language"`
	Confidence float64            `json:"confidence"`
	Engine     string             `json:"engine"`
	Refiner    string             `json:"refiner,omitempty"`
	Template   string             `json:"template,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

func (s *Service) Process(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ProcessRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, common.InvalidArgumentError("image is required")
	}
	for i, r := range req.Regions {
		if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 {
			return nil, common.InvalidArgumentErrorf("regions[%d] %q has invalid geometry", i, r.Name)
		}
	}
	resp, err := s.proc.Process(ctx, pipeline.Request{
		DocumentID:    req.DocumentID,
		Source:        req.Source,
		Image:         req.Image,
		MIMEType:      req.MIMEType,
		Mode:          constants.ParseMode(req.Mode),
		Quality:       constants.ParseQuality(req.Quality),
		Languages:     req.Languages,
		Regions:       req.Regions,
		SkipTemplates: req.SkipTemplates,
	})
	if err != nil {
		return nil, err
	}
	out := ProcessReply{
		DocumentID: resp.DocumentID,
		RunID:      resp.RunID,
		Text:       resp.Text,
		Structure:  resp.Structure,
		Language:   resp.Language,
		Confidence: resp.Confidence,
		Engine:     string(resp.Engine),
		Refiner:    string(resp.Refiner),
		DurationMS: resp.Duration.Milliseconds(),
	}
	if resp.Template != nil {
		out.Template = resp.Template.Name
	}
	return encode(out)
}

type imageRequest struct {
	Image []byte `json:"image"`
}

func (s *Service) Fingerprint(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req imageRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	fp, err := fingerprint(req.Image)
	if err != nil {
		return nil, err
	}
	return encode(map[string]string{"fingerprint": fp})
}

func fingerprint(image []byte) (string, error) {
	if len(image) == 0 {
		return "", common.InvalidArgumentError("image is required")
	}
	fp, err := imaging.FingerprintBytes(image)
	if err != nil {
		return "", common.NewAppError("INVALID_INPUT", "fingerprint", errors.Join(common.ErrInvalidInput, err))
	}
	return fp, nil
}

// MatchTemplate answers {"matched": false} when no template is close enough.
func (s *Service) MatchTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req imageRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, common.InvalidArgumentError("image is required")
	}
	t, err := s.matcher.Match(ctx, req.Image)
	if errors.Is(err, common.ErrNotMatched) {
		return encode(map[string]any{"matched": false})
	}
	if err != nil {
		return nil, err
	}
	return encode(map[string]any{"matched": true, "template": t})
}

// TemplateRequest creates or updates a template. When Fingerprint is empty it is computed
// from Image.
type TemplateRequest struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Image       []byte            `json:"image,omitempty"`
	Regions     []document.Region `json:"regions"`
}

func (r TemplateRequest) template() (template.Template, error) {
	t := template.Template{
		ID:          r.ID,
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Fingerprint: r.Fingerprint,
		Regions:     r.Regions,
	}
	if t.Fingerprint == "" && len(r.Image) > 0 {
		fp, err := fingerprint(r.Image)
		if err != nil {
			return t, err
		}
		t.Fingerprint = fp
	}
	return t, nil
}

func (s *Service) CreateTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TemplateRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	t, err := req.template()
	if err != nil {
		return nil, err
	}
	created, err := s.templates.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("server.template.created", "id", created.ID, "name", created.Name)
	return encode(created)
}

func (s *Service) UpdateTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TemplateRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, common.InvalidArgumentError("id is required")
	}
	t, err := req.template()
	if err != nil {
		return nil, err
	}
	updated, err := s.templates.Update(ctx, t)
	if err != nil {
		return nil, err
	}
	return encode(updated)
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Service) GetTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req idRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, common.InvalidArgumentError("id is required")
	}
	t, err := s.templates.GetTemplate(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return encode(t)
}

func (s *Service) ListTemplates(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ts, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		ts = []template.Template{}
	}
	return encode(map[string]any{"templates": ts})
}

func (s *Service) DeleteTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req idRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, common.InvalidArgumentError("id is required")
	}
	if err := s.templates.Delete(ctx, req.ID); err != nil {
		return nil, err
	}
	s.logger.Info("server.template.deleted", "id", req.ID)
	return encode(map[string]any{"deleted": true})
}

type listRunsRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// RunView is the JSON shape of one processing run.
type RunView struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	Source       string  `json:"source,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	Quality      string  `json:"quality,omitempty"`
	Engine       string  `json:"engine,omitempty"`
	Refiner      string  `json:"refiner,omitempty"`
	TemplateID   string  `json:"template_id,omitempty"`
	Language     string  `json:"language,omitempty"`
	Confidence   float64 `json:"confidence"`
	TextLength   int     `json:"text_length"`
	ElementCount int     `json:"element_count"`
	DurationMS   int64   `json:"duration_ms"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	StartedAt    string  `json:"started_at"`
}

func toRunView(r repository.Run) RunView {
	return RunView{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Source:       r.Source,
		Mode:         string(r.Mode),
		Quality:      string(r.Quality),
		Engine:       string(r.Engine),
		Refiner:      string(r.Refiner),
		TemplateID:   r.TemplateID,
		Language:     r.Language,
		Confidence:   r.Confidence,
		TextLength:   r.TextLength,
		ElementCount: r.ElementCount,
		DurationMS:   r.Duration.Milliseconds(),
		Status:       string(r.Status),
		Error:        r.Error,
		StartedAt:    r.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func (s *Service) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRunsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, common.InvalidArgumentError("limit must be non-negative")
	}
	var (
		runs []repository.Run
		err  error
	)
	if req.DocumentID != "" {
		runs, err = s.runs.ListByDocument(ctx, req.DocumentID)
	} else {
		runs, err = s.runs.ListRecent(ctx, req.Limit)
	}
	if err != nil {
		return nil, err
	}
	views := make([]RunView, 0, len(runs))
	for _, r := range runs {
		views = append(views, toRunView(r))
	}
	return encode(map[string]any{"runs": views})
}

func (s *Service) RunStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.runs.StatsByEngine(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(stats))
	for _, st := range stats {
		out = append(out, map[string]any{
			"engine":         string(st.Engine),
			"runs":           st.Runs,
			"failed":         st.Failed,
			"avg_confidence": st.AvgConfidence,
		})
	}
	return encode(map[string]any{"engines": out})
}
