package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Runner executes an external tool (tesseract, heif-convert, magick, sips).
// Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools as child processes. Env entries are appended to the
// inherited environment, e.g. TESSDATA_PREFIX=/usr/share/tessdata.
type ExecRunner struct {
	Logger *slog.Logger
	Env    []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	attrs := []any{"tool", name, "argc", len(args), "elapsed_ms", time.Since(start).Milliseconds()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Debug("ocr.exec.ok", append(attrs, "stdout_bytes", stdout.Len())...)
	case errors.As(err, &exitErr):
		logger.Warn("ocr.exec.exit", append(attrs, "code", exitErr.ExitCode(), "stderr", truncate(stderr.String(), 2048))...)
	default:
		logger.Error("ocr.exec.failed", append(attrs, "error", err)...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
