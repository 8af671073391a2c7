package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/manekies/document-converter-app/internal/layout"
)

// CLIReader shells out to the tesseract binary in TSV mode.
type CLIReader struct {
	Binary      string // default "tesseract"
	TessdataDir string
	PSM         int
	runner      Runner
	logger      *slog.Logger
}

func NewCLIReader(binary, tessdataDir string, runner Runner, logger *slog.Logger) *CLIReader {
	if logger == nil {
		logger = slog.Default()
	}
	if binary == "" {
		binary = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &CLIReader{Binary: binary, TessdataDir: tessdataDir, runner: runner, logger: logger}
}

func (r *CLIReader) Read(ctx context.Context, image []byte, languages []string) (RawPage, error) {
	f, err := os.CreateTemp("", "docconv-*.img")
	if err != nil {
		return RawPage{}, fmt.Errorf("temp image: %w", err)
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			r.logger.Warn("ocr.cli.cleanup_failed", "path", f.Name(), "error", err)
		}
	}()
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return RawPage{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return RawPage{}, fmt.Errorf("close temp image: %w", err)
	}

	args := []string{f.Name(), "stdout", "-l", LanguageArg(languages)}
	if r.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(r.PSM))
	}
	if r.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := r.runner.Run(ctx, r.Binary, args...)
	if err != nil {
		return RawPage{}, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return ParseTSV(string(out)), nil
}

// TSV levels as emitted by tesseract.
const (
	tsvLevelPage = 1
	tsvLevelWord = 5
)

// ParseTSV groups word rows of tesseract TSV output into lines with bounding boxes.
// Columns: level page block par line word left top width height conf text.
// A horizontal gap of at least one word height between words becomes a double space,
// which is what table-row detection splits on.
func ParseTSV(tsv string) RawPage {
	var page RawPage
	index := map[string]int{}
	lastRight := map[string]float64{}
	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(row) == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < 11 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil {
			continue
		}
		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		width, _ := strconv.ParseFloat(cols[8], 64)
		height, _ := strconv.ParseFloat(cols[9], 64)

		switch level {
		case tsvLevelPage:
			page.Width, page.Height = width, height
		case tsvLevelWord:
			text := ""
			if len(cols) > 11 {
				text = strings.TrimSpace(cols[11])
			}
			if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 && text != "" {
				page.WordConfidences = append(page.WordConfidences, conf)
			}
			if text == "" {
				continue
			}
			key := strings.Join(cols[1:5], "/")
			j, ok := index[key]
			if !ok {
				index[key] = len(page.Lines)
				lastRight[key] = left + width
				page.Lines = append(page.Lines, layout.Line{
					Text: text, X0: left, Y0: top, X1: left + width, Y1: top + height,
				})
				continue
			}
			l := &page.Lines[j]
			sep := " "
			if height > 0 && left-lastRight[key] >= height {
				sep = "  "
			}
			l.Text += sep + text
			lastRight[key] = left + width
			l.X0, l.Y0 = min(l.X0, left), min(l.Y0, top)
			l.X1, l.Y1 = max(l.X1, left+width), max(l.Y1, top+height)
		}
	}
	texts := make([]string, len(page.Lines))
	for i, l := range page.Lines {
		texts[i] = l.Text
	}
	page.Text = strings.Join(texts, "\n")
	return page
}
