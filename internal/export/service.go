package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/repository"
)

const (
	elementsSheet = "Elements"
	runsSheet     = "Runs"
)

// Service produces XLSX bytes for recognition results and run telemetry.
type Service struct {
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// TablesToXLSX writes an element overview sheet followed by one sheet per table element,
// named "Table 1", "Table 2" and so on in reading order.
func TablesToXLSX(s document.Structure) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", elementsSheet); err != nil {
		return nil, err
	}

	headers := []any{"#", "Type", "Level", "Field", "Content", "X", "Y", "Width", "Height"}
	if err := f.SetSheetRow(elementsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	tables := 0
	for i, el := range s.Elements {
		row := []any{
			i + 1, string(el.Type), el.Level, el.Field, truncate(el.Content, 32000),
			el.Position.X, el.Position.Y, el.Position.Width, el.Position.Height,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(elementsSheet, cell, &row); err != nil {
			return nil, err
		}
		if el.Type != document.KindTable || el.Table == nil {
			continue
		}
		tables++
		if err := writeTable(f, fmt.Sprintf("Table %d", tables), el.Table); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(elementsSheet, "B", "B", 12)
	_ = f.SetColWidth(elementsSheet, "E", "E", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, common.WrapError(err, "xlsx write")
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, t *document.Table) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for r, cells := range t.Rows {
		col := 1
		for _, c := range cells {
			cell, _ := excelize.CoordinatesToCellName(col, r+1)
			if err := f.SetCellValue(sheet, cell, c.Text); err != nil {
				return err
			}
			span := max(c.ColSpan, 1)
			if span > 1 {
				end, _ := excelize.CoordinatesToCellName(col+span-1, r+1)
				if err := f.MergeCell(sheet, cell, end); err != nil {
					return err
				}
			}
			col += span
		}
	}
	return nil
}

// ExportRunsXLSX returns the most recent processing runs as a workbook.
func (s *Service) ExportRunsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, common.WrapError(err, "query runs")
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", runsSheet); err != nil {
		return nil, err
	}
	headers := []any{
		"Started", "Document", "Source", "Mode", "Quality", "Engine", "Refiner",
		"Template", "Language", "Confidence", "Elements", "Duration (ms)", "Status", "Error",
	}
	if err := f.SetSheetRow(runsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, r := range runs {
		row := []any{
			r.StartedAt.UTC().Format(time.RFC3339), r.DocumentID, r.Source, string(r.Mode), string(r.Quality),
			string(r.Engine), string(r.Refiner), r.TemplateID, r.Language, r.Confidence, r.ElementCount,
			r.Duration.Milliseconds(), string(r.Status), truncate(r.Error, 140),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(runsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(runsSheet, "A", "A", 22)
	_ = f.SetColWidth(runsSheet, "B", "C", 38)
	_ = f.SetColWidth(runsSheet, "N", "N", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, common.WrapError(err, "xlsx write")
	}
	s.logger.Info("export.runs.ok", "rows", len(runs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
