package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// HEIC tools accepted by HEICConverter.
const (
	HEICToolHeifConvert = "heif-convert"
	HEICToolMagick      = "magick"
	HEICToolSips        = "sips"
)

// IsHEIC reports whether mimeType names a HEIC/HEIF photo.
func IsHEIC(mimeType string) bool {
	m := strings.ToLower(mimeType)
	return m == "image/heic" || m == "image/heif"
}

// HEICConverter turns HEIC/HEIF photos into PNG with an external tool, since no decoder
// exists for them in the image stack. A zero Tool disables conversion.
type HEICConverter struct {
	Tool   string
	runner Runner
	logger *slog.Logger
}

func NewHEICConverter(tool string, runner Runner, logger *slog.Logger) *HEICConverter {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &HEICConverter{Tool: tool, runner: runner, logger: logger}
}

func (c *HEICConverter) Enabled() bool { return c != nil && c.Tool != "" }

// ToPNG converts data and returns the PNG bytes.
func (c *HEICConverter) ToPNG(ctx context.Context, data []byte) ([]byte, error) {
	if !c.Enabled() {
		return nil, errors.New("HEIC not supported: set HEIC_CONVERTER to heif-convert, magick or sips")
	}
	dir, err := os.MkdirTemp("", "docconv-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "page.heic")
	out := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	var args []string
	switch c.Tool {
	case HEICToolHeifConvert, HEICToolMagick:
		args = []string{in, out}
	case HEICToolSips:
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return nil, fmt.Errorf("unknown HEIC converter %q", c.Tool)
	}
	if _, errb, err := c.runner.Run(ctx, c.Tool, args...); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", c.Tool, err, truncate(string(errb), 300))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	c.logger.Debug("ocr.heic.converted", "tool", c.Tool, "in_bytes", len(data), "out_bytes", len(png))
	return png, nil
}
