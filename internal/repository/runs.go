package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
)

const runsTable = "processing_runs"

var runColumns = []string{
	"id", "document_id", "source", "mode", "quality", "engine", "refiner", "template_id", "language",
	"confidence", "text_length", "element_count", "duration_ms", "status", "error", "started_at",
}

// Run is the telemetry row written for every processing request.
type Run struct {
	ID           string
	DocumentID   string
	Source       string
	Mode         constants.Mode
	Quality      constants.Quality
	Engine       constants.Provider
	Refiner      constants.Provider
	TemplateID   string
	Language     string
	Confidence   float64
	TextLength   int
	ElementCount int
	Duration     time.Duration
	Status       constants.RunStatus
	Error        string
	StartedAt    time.Time
}

// EngineStats aggregates runs per recognition engine.
type EngineStats struct {
	Engine        constants.Provider
	Runs          int64
	Failed        int64
	AvgConfidence float64
}

type RunRepository interface {
	Record(ctx context.Context, run Run) (*Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	ListRecent(ctx context.Context, limit int) ([]Run, error)
	ListByDocument(ctx context.Context, documentID string) ([]Run, error)
	StatsByEngine(ctx context.Context) ([]EngineStats, error)
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger}
}

func (r *runRepo) Record(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC().Truncate(time.Millisecond)
	if run.Status == "" {
		run.Status = constants.RunStatusCompleted
	}

	query, args := r.db.builder().Insert(runsTable).
		Columns(runColumns...).
		Values(run.ID, run.DocumentID, run.Source, string(run.Mode), string(run.Quality),
			string(run.Engine), string(run.Refiner), run.TemplateID, run.Language,
			run.Confidence, run.TextLength, run.ElementCount, run.Duration.Milliseconds(),
			string(run.Status), run.Error, run.StartedAt.UnixMilli()).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to record processing run", "document_id", run.DocumentID, "error", err)
		return nil, common.NewAppError("DB_ERROR", "record run", errors.Join(common.ErrDatabase, err))
	}
	return &run, nil
}

func (r *runRepo) Get(ctx context.Context, id string) (*Run, error) {
	query, args := r.db.builder().Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	run, err := scanRun(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "run "+id, common.ErrNotFound)
	}
	return run, err
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	sel := r.db.builder().Select(runColumns...).
		From(entsql.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("id")).
		Limit(limit)
	return r.query(ctx, sel)
}

func (r *runRepo) ListByDocument(ctx context.Context, documentID string) ([]Run, error) {
	sel := r.db.builder().Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy("started_at", "id")
	return r.query(ctx, sel)
}

func (r *runRepo) query(ctx context.Context, sel *entsql.Selector) ([]Run, error) {
	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list processing runs", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list runs", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// StatsByEngine counts runs and failures per engine with the mean confidence of completed runs.
func (r *runRepo) StatsByEngine(ctx context.Context) ([]EngineStats, error) {
	query, args := r.db.builder().Select("engine", "status", "confidence").
		From(entsql.Table(runsTable)).
		OrderBy("engine").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "run stats", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var (
		out  []EngineStats
		sums []float64
	)
	for rows.Next() {
		var (
			engine, status string
			conf           float64
		)
		if err := rows.Scan(&engine, &status, &conf); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Engine != constants.Provider(engine) {
			out = append(out, EngineStats{Engine: constants.Provider(engine)})
			sums = append(sums, 0)
		}
		s := &out[len(out)-1]
		s.Runs++
		if constants.RunStatus(status) == constants.RunStatusFailed {
			s.Failed++
			continue
		}
		sums[len(sums)-1] += conf
	}
	for i := range out {
		if done := out[i].Runs - out[i].Failed; done > 0 {
			out[i].AvgConfidence = sums[i] / float64(done)
		}
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                                    Run
		mode, quality, engine, refiner, status string
		durationMS, startedAt                  int64
	)
	if err := row.Scan(&run.ID, &run.DocumentID, &run.Source, &mode, &quality, &engine, &refiner,
		&run.TemplateID, &run.Language, &run.Confidence, &run.TextLength, &run.ElementCount,
		&durationMS, &status, &run.Error, &startedAt); err != nil {
		return nil, err
	}
	run.Mode = constants.Mode(mode)
	run.Quality = constants.Quality(quality)
	run.Engine = constants.Provider(engine)
	run.Refiner = constants.Provider(refiner)
	run.Status = constants.RunStatus(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	return &run, nil
}
