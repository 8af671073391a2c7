package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/pipeline"
)

// Batch processes paths through a bounded worker pool and returns one result per path, in
// input order. A failing item never aborts its siblings.
func Batch(ctx context.Context, handler Handler, paths []string, req pipeline.Request, logger *slog.Logger, opts ...Option) []ItemResult {
	results := make([]ItemResult, len(paths))
	index := make(map[string]int, len(paths))
	var mu sync.Mutex

	sink := func(r ItemResult) {
		mu.Lock()
		defer mu.Unlock()
		if i, ok := index[r.TraceID]; ok {
			results[i] = r
		}
	}
	q := NewProcessorQueue(handler, logger, append(opts, WithResultSink(sink))...)

	for i, p := range paths {
		traceID := fmt.Sprintf("batch-%d", i)
		mu.Lock()
		index[traceID] = i
		results[i] = ItemResult{Path: p, TraceID: traceID, Status: constants.ItemStatusQueued}
		mu.Unlock()

		itemReq := req
		itemReq.DocumentID = ""
		if err := q.Enqueue(ctx, Job{Path: p, Request: itemReq, TraceID: traceID}); err != nil {
			mu.Lock()
			results[i].Status = constants.ItemStatusFailed
			results[i].Err = err
			mu.Unlock()
		}
	}
	q.Shutdown(context.WithoutCancel(ctx))

	mu.Lock()
	defer mu.Unlock()
	out := make([]ItemResult, len(results))
	copy(out, results)
	return out
}
