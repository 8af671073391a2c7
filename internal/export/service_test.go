package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/repository"
)

func open(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestTablesToXLSX(t *testing.T) {
	s := document.Structure{
		Elements: []document.Element{
			{Type: document.KindHeading, Content: "Prices", Level: 1},
			{Type: document.KindTable, Content: "Item Qty Price", Table: &document.Table{Rows: [][]document.Cell{
				{{Text: "Item"}, {Text: "Qty"}, {Text: "Price"}},
				{{Text: "Total", ColSpan: 2}, {Text: "9.50"}},
			}}},
			{Type: document.KindParagraph, Content: "Thanks"},
		},
	}
	data, err := TablesToXLSX(s)
	if err != nil {
		t.Fatalf("TablesToXLSX: %v", err)
	}
	f := open(t, data)

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != elementsSheet || sheets[1] != "Table 1" {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(elementsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[1][1] != "heading" || rows[3][4] != "Thanks" {
		t.Errorf("elements rows = %v", rows)
	}

	table, err := f.GetRows("Table 1")
	if err != nil {
		t.Fatal(err)
	}
	if table[0][2] != "Price" || table[1][0] != "Total" || table[1][2] != "9.50" {
		t.Errorf("table rows = %v", table)
	}
	merged, err := f.GetMergeCells("Table 1")
	if err != nil || len(merged) != 1 || merged[0].GetStartAxis() != "A2" || merged[0].GetEndAxis() != "B2" {
		t.Errorf("merged = %v, %v", merged, err)
	}
}

func TestExportRunsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	runs := repository.NewRunRepository(db, nil)
	if _, err := runs.Record(ctx, repository.Run{
		DocumentID: "doc-1",
		Engine:     constants.EngineTesseract,
		Status:     constants.RunStatusCompleted,
		Duration:   1500 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}

	data, err := NewService(runs, nil).ExportRunsXLSX(ctx, 10)
	if err != nil {
		t.Fatalf("ExportRunsXLSX: %v", err)
	}
	rows, err := open(t, data).GetRows(runsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][1] != "doc-1" || rows[1][5] != "tesseract" || rows[1][11] != "1500" {
		t.Errorf("rows = %v", rows)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hé…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Errorf("truncate n=0 = %q", got)
	}
}

func TestExportRunsXLSXStoreFailure(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	runs := repository.NewRunRepository(db, nil)
	db.Close()

	_, err = NewService(runs, nil).ExportRunsXLSX(ctx, 10)
	if !errors.Is(err, common.ErrDatabase) {
		t.Fatalf("err = %v, want database error", err)
	}
	if !strings.HasPrefix(err.Error(), "query runs: ") {
		t.Errorf("err = %q, want query runs context", err)
	}
}
