package async

import (
	"context"
	"errors"
	"time"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one page image waiting to be processed.
type Job struct {
	Path        string
	Request     pipeline.Request
	SubmittedAt time.Time
	TraceID     string
}

// ItemResult is the per-job outcome reported to the result sink.
type ItemResult struct {
	Path       string
	TraceID    string
	Status     constants.ItemStatus
	DocumentID string
	RunID      string
	Response   *pipeline.Response
	Err        error
}

// Handler converts one file; *pipeline.Service satisfies it.
type Handler interface {
	ProcessFile(ctx context.Context, path string, req pipeline.Request) (*pipeline.Response, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
