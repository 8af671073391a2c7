package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/template"
)

const templatesTable = "templates"

var templateColumns = []string{"id", "name", "description", "fingerprint", "regions", "created_at", "updated_at"}

// TemplateRepository is the CRUD side of template storage. It also satisfies template.Store.
type TemplateRepository interface {
	Create(ctx context.Context, t template.Template) (*template.Template, error)
	Update(ctx context.Context, t template.Template) (*template.Template, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]template.Template, error)
	GetTemplate(ctx context.Context, id string) (*template.Template, error)
	ListFingerprints(ctx context.Context) ([]template.Fingerprint, error)
}

type templateRepo struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

func NewTemplateRepository(db *DB, logger *slog.Logger) TemplateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &templateRepo{db: db, now: time.Now, logger: logger}
}

func (r *templateRepo) Create(ctx context.Context, t template.Template) (*template.Template, error) {
	if err := template.Validate(t); err != nil {
		return nil, err
	}
	regions, err := json.Marshal(t.Regions)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "encode regions", err)
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	t.ID = uuid.New().String()
	t.CreatedAt, t.UpdatedAt = now, now

	query, args := r.db.builder().Insert(templatesTable).
		Columns(templateColumns...).
		Values(t.ID, t.Name, t.Description, t.Fingerprint, string(regions), now.UnixMilli(), now.UnixMilli()).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create template", "name", t.Name, "error", err)
		return nil, common.NewAppError("DB_ERROR", "create template", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Info("template created", "template_id", t.ID, "name", t.Name, "regions", len(t.Regions))
	return &t, nil
}

func (r *templateRepo) Update(ctx context.Context, t template.Template) (*template.Template, error) {
	if t.ID == "" {
		return nil, common.NewAppError("INVALID_INPUT", "template id is required", common.ErrInvalidInput)
	}
	if err := template.Validate(t); err != nil {
		return nil, err
	}
	existing, err := r.GetTemplate(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	regions, err := json.Marshal(t.Regions)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "encode regions", err)
	}
	now := r.now().UTC().Truncate(time.Millisecond)

	query, args := r.db.builder().Update(templatesTable).
		Set("name", t.Name).
		Set("description", t.Description).
		Set("fingerprint", t.Fingerprint).
		Set("regions", string(regions)).
		Set("updated_at", now.UnixMilli()).
		Where(entsql.EQ("id", t.ID)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to update template", "template_id", t.ID, "error", err)
		return nil, common.NewAppError("DB_ERROR", "update template", errors.Join(common.ErrDatabase, err))
	}
	t.CreatedAt, t.UpdatedAt = existing.CreatedAt, now
	return &t, nil
}

func (r *templateRepo) Delete(ctx context.Context, id string) error {
	query, args := r.db.builder().Delete(templatesTable).Where(entsql.EQ("id", id)).Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete template", "template_id", id, "error", err)
		return common.NewAppError("DB_ERROR", "delete template", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", "template "+id, common.ErrNotFound)
	}
	return nil
}

func (r *templateRepo) List(ctx context.Context) ([]template.Template, error) {
	query, args := r.db.builder().Select(templateColumns...).
		From(entsql.Table(templatesTable)).
		OrderBy("created_at", "id").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list templates", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list templates", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *templateRepo) GetTemplate(ctx context.Context, id string) (*template.Template, error) {
	query, args := r.db.builder().Select(templateColumns...).
		From(entsql.Table(templatesTable)).
		Where(entsql.EQ("id", id)).
		Query()
	t, err := scanTemplate(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "template "+id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get template", "template_id", id, "error", err)
		return nil, err
	}
	return t, nil
}

// ListFingerprints returns every (id, fingerprint) pair in creation order, which is the
// order the matcher breaks ties in.
func (r *templateRepo) ListFingerprints(ctx context.Context) ([]template.Fingerprint, error) {
	query, args := r.db.builder().Select("id", "fingerprint").
		From(entsql.Table(templatesTable)).
		OrderBy("created_at", "id").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list fingerprints", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list fingerprints", errors.Join(common.ErrDatabase, err))
	}
	defer func() { _ = rows.Close() }()

	var out []template.Fingerprint
	for rows.Next() {
		var fp template.Fingerprint
		if err := rows.Scan(&fp.TemplateID, &fp.Hash); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*template.Template, error) {
	var (
		t                    template.Template
		regions              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Fingerprint, &regions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(regions), &t.Regions); err != nil {
		return nil, fmt.Errorf("decode regions of template %s: %w", t.ID, err)
	}
	if t.Regions == nil {
		t.Regions = []document.Region{}
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &t, nil
}
