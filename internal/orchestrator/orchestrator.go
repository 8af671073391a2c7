package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/llm"
	"github.com/manekies/document-converter-app/internal/ocr"
)

// RegionRecognizer runs recognition scoped to template regions.
type RegionRecognizer interface {
	RecognizeRegions(ctx context.Context, in ocr.Input, regions []document.Region) (document.RecognitionResult, error)
}

// Engines are the recognition backends. Local is required; the others may be nil.
// When Regions is nil and Local implements RegionRecognizer, Local serves region requests.
type Engines struct {
	Local      ocr.Engine
	Cloud      ocr.Engine
	SelfHosted ocr.Engine
	Regions    RegionRecognizer
}

type Config struct {
	LocalSizeLimit int64
	TieWindow      float64
}

// Options are the per-request knobs.
type Options struct {
	Mode      constants.Mode
	Quality   constants.Quality
	Languages []string
	Regions   []document.Region
}

// Attempt records the outcome of one engine call.
type Attempt struct {
	Engine     constants.Provider
	Confidence float64
	Elements   int
	Err        error
}

// Result is the recognition result plus the identifiers of the backends that produced it.
// Refiner is empty when no refinement was applied.
type Result struct {
	document.RecognitionResult
	Engine   constants.Provider
	Refiner  constants.Provider
	Route    Route
	Attempts []Attempt
}

// Orchestrator routes a page across recognition engines, picks the best candidate and
// optionally refines it. It holds no per-request state.
type Orchestrator struct {
	cfg      Config
	engines  Engines
	refiners []llm.Refiner
	logger   *slog.Logger
}

// New wires the orchestrator. refiners are tried in slice order; nil entries are ignored.
func New(cfg Config, engines Engines, refiners []llm.Refiner, logger *slog.Logger) (*Orchestrator, error) {
	if engines.Local == nil {
		return nil, errors.New("orchestrator: local engine is required")
	}
	if engines.Regions == nil {
		if rr, ok := engines.Local.(RegionRecognizer); ok {
			engines.Regions = rr
		}
	}
	if cfg.LocalSizeLimit <= 0 {
		cfg.LocalSizeLimit = DefaultLocalSizeLimit
	}
	if cfg.TieWindow <= 0 {
		cfg.TieWindow = DefaultTieWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]llm.Refiner, 0, len(refiners))
	for _, r := range refiners {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return &Orchestrator{cfg: cfg, engines: engines, refiners: kept, logger: logger}, nil
}

// Process runs one request end to end. The only error it returns for a well-formed request
// wraps common.ErrNoEngine.
func (o *Orchestrator) Process(ctx context.Context, image []byte, mimeType string, opts Options) (*Result, error) {
	in := ocr.Input{Image: image, MIMEType: mimeType, Languages: opts.Languages}
	start := time.Now()

	var res *Result
	if len(opts.Regions) > 0 {
		r, err := o.processRegions(ctx, in, opts.Regions)
		if err != nil {
			return nil, err
		}
		res = r
	} else {
		route := DecideRoute(opts.Mode, int64(len(image)), o.cfg.LocalSizeLimit)
		r, err := o.recognize(ctx, in, route)
		if err != nil {
			return nil, err
		}
		res = r
	}

	if opts.Quality == constants.QualityBest {
		o.refine(ctx, res)
	}

	o.logger.Info("orchestrator.done", append(common.LogAttrs(ctx),
		"engine", res.Engine,
		"refiner", res.Refiner,
		"confidence", res.Confidence,
		"elements", len(res.Structure.Elements),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return res, nil
}

func (o *Orchestrator) processRegions(ctx context.Context, in ocr.Input, regions []document.Region) (*Result, error) {
	if o.engines.Regions == nil {
		return nil, common.NewAppError("NO_ENGINE", "no engine supports region recognition", common.ErrNoEngine)
	}
	r, err := o.engines.Regions.RecognizeRegions(ctx, in, regions)
	if err != nil {
		o.logger.Warn("orchestrator.regions.failed", "regions", len(regions), "error", err)
		return nil, common.NewAppError("NO_ENGINE", "region recognition", errors.Join(common.ErrNoEngine, err))
	}
	engine := constants.EngineTesseract
	if named, ok := o.engines.Regions.(interface{ Name() constants.Provider }); ok {
		engine = named.Name()
	}
	return &Result{
		RecognitionResult: r,
		Engine:            engine,
		Route:             Route{PreferLocal: true},
		Attempts:          []Attempt{{Engine: engine, Confidence: r.Confidence, Elements: len(r.Structure.Elements)}},
	}, nil
}

// Candidates returns the engines a route runs concurrently, in ensemble order.
func (o *Orchestrator) Candidates(route Route) []ocr.Engine {
	switch {
	case route.PreferLocal:
		out := []ocr.Engine{o.engines.Local}
		if available(o.engines.SelfHosted) {
			out = append(out, o.engines.SelfHosted)
		}
		return out
	case route.AllowCloud && available(o.engines.Cloud):
		return []ocr.Engine{o.engines.Cloud, o.engines.Local}
	default:
		return []ocr.Engine{o.engines.Local}
	}
}

func available(e ocr.Engine) bool {
	return e != nil && e.Available()
}

type outcome struct {
	result document.RecognitionResult
	err    error
}

func (o *Orchestrator) recognize(ctx context.Context, in ocr.Input, route Route) (*Result, error) {
	engines := o.Candidates(route)
	outcomes := make([]outcome, len(engines))

	// Failures stay in outcomes; a zero-value Group never cancels siblings.
	var g errgroup.Group
	for i, e := range engines {
		g.Go(func() error {
			r, err := e.Recognize(ctx, in)
			outcomes[i] = outcome{result: r, err: err}
			return nil
		})
	}
	_ = g.Wait()

	attempts := make([]Attempt, 0, len(engines)+1)
	cands := make([]Candidate, 0, len(engines))
	for i, e := range engines {
		oc := outcomes[i]
		a := Attempt{Engine: e.Name(), Err: oc.err}
		if oc.err != nil {
			o.logFailure(ctx, "orchestrator.engine.failed", e.Name(), oc.err)
		} else {
			a.Confidence = oc.result.Confidence
			a.Elements = len(oc.result.Structure.Elements)
			cands = append(cands, Candidate{Engine: e.Name(), Result: oc.result})
		}
		attempts = append(attempts, a)
	}

	if best, ok := SelectBest(cands, o.cfg.TieWindow); ok {
		return &Result{RecognitionResult: best.Result, Engine: best.Engine, Route: route, Attempts: attempts}, nil
	}

	last := o.engines.Local
	if route.AllowCloud && available(o.engines.Cloud) {
		last = o.engines.Cloud
	}
	o.logger.Warn("orchestrator.fallback", "engine", last.Name(), "failed_candidates", len(engines))
	r, err := last.Recognize(ctx, in)
	attempts = append(attempts, Attempt{Engine: last.Name(), Confidence: r.Confidence, Elements: len(r.Structure.Elements), Err: err})
	if err != nil {
		o.logger.Error("orchestrator.exhausted", "engine", last.Name(), "error", err)
		return nil, common.NewAppError("NO_ENGINE", "all recognition attempts failed", errors.Join(common.ErrNoEngine, err))
	}
	return &Result{RecognitionResult: r, Engine: last.Name(), Route: route, Attempts: attempts}, nil
}

// refine runs the cascade in order and replaces the structure only after a backend
// returned a parse-valid one. On total failure res is left untouched.
func (o *Orchestrator) refine(ctx context.Context, res *Result) {
	for _, r := range o.refiners {
		if !r.Available() {
			o.logger.Debug("orchestrator.refiner.unavailable", "refiner", r.Name())
			continue
		}
		out, err := r.Refine(ctx, res.Text, res.Structure, res.Language)
		if err != nil {
			o.logFailure(ctx, "orchestrator.refiner.failed", r.Name(), err)
			continue
		}
		res.Text = out.Text
		res.Structure = out.Structure
		res.Refiner = r.Name()
		return
	}
	o.logger.Info("orchestrator.refine.skipped", "refiners", len(o.refiners))
}

func (o *Orchestrator) logFailure(ctx context.Context, event string, provider constants.Provider, err error) {
	attrs := append(common.LogAttrs(ctx), "provider", provider, "error", err)
	if common.IsUnavailable(err) {
		o.logger.Debug(event, attrs...)
		return
	}
	o.logger.Warn(event, attrs...)
}
