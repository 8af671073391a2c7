package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/manekies/document-converter-app/internal/async"
	"github.com/manekies/document-converter-app/internal/pipeline"
)

// Enqueuer accepts batch jobs; *async.ProcessorQueue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Inbox turns discovered paths into queue jobs, skipping content it has already queued.
type Inbox struct {
	queue   Enqueuer
	request pipeline.Request
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]string // sha256 hex -> first path
}

func NewInbox(queue Enqueuer, request pipeline.Request, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{queue: queue, request: request, logger: logger, seen: map[string]string{}}
}

// Submit hashes path and enqueues it unless identical bytes were queued before.
// It reports whether a job was enqueued.
func (i *Inbox) Submit(ctx context.Context, path string) (bool, error) {
	sum, err := hashFile(path)
	if err != nil {
		return false, err
	}
	i.mu.Lock()
	if first, dup := i.seen[sum]; dup {
		i.mu.Unlock()
		i.logger.Info("ingest.inbox.duplicate", "path", path, "first", first)
		return false, nil
	}
	i.seen[sum] = path
	i.mu.Unlock()

	req := i.request
	req.DocumentID = sum
	if err := i.queue.Enqueue(ctx, async.Job{Path: path, Request: req}); err != nil {
		i.mu.Lock()
		delete(i.seen, sum)
		i.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Run submits every path from paths until the channel closes or ctx ends.
func (i *Inbox) Run(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if _, err := i.Submit(ctx, p); err != nil {
				i.logger.Warn("ingest.inbox.submit_failed", "path", p, "error", err)
			}
		}
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
