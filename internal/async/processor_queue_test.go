package async

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/orchestrator"
	"github.com/manekies/document-converter-app/internal/pipeline"
)

type fakeHandler struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (f *fakeHandler) ProcessFile(_ context.Context, path string, req pipeline.Request) (*pipeline.Response, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)
	if strings.Contains(path, "bad") {
		return nil, errors.New("unreadable page")
	}
	return &pipeline.Response{
		Result:     &orchestrator.Result{Engine: constants.EngineTesseract},
		DocumentID: "doc-" + path,
		RunID:      "run-" + path,
	}, nil
}

func TestBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	h := &fakeHandler{delay: 5 * time.Millisecond}
	paths := []string{"a.png", "bad.png", "c.png", "d.png", "e.png"}

	results := Batch(context.Background(), h, paths, pipeline.Request{Mode: constants.ModeLocal}, nil, WithWorkers(2), WithQueueSize(1))

	if len(results) != len(paths) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("results[%d].Path = %q, want %q", i, r.Path, paths[i])
		}
		wantStatus := constants.ItemStatusCompleted
		if paths[i] == "bad.png" {
			wantStatus = constants.ItemStatusFailed
		}
		if r.Status != wantStatus {
			t.Errorf("%s status = %s, want %s (err %v)", r.Path, r.Status, wantStatus, r.Err)
		}
	}
	if results[0].RunID != "run-a.png" || results[1].Err == nil {
		t.Errorf("unexpected results %+v", results[:2])
	}
	if got := h.maxSeen.Load(); got > 2 {
		t.Errorf("concurrency = %d, want <= 2", got)
	}
}

func TestProcessorQueue(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []ItemResult
	)
	q := NewProcessorQueue(&fakeHandler{}, nil, WithWorkers(1), WithResultSink(func(r ItemResult) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	}))

	if err := q.Enqueue(context.Background(), Job{Path: "x.png", TraceID: "t1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	q.Shutdown(context.Background())

	if s, ok := q.Status("t1"); !ok || s != constants.ItemStatusCompleted {
		t.Errorf("Status = %q, %v", s, ok)
	}
	if _, ok := q.Status("unknown"); ok {
		t.Error("unknown trace id reported")
	}
	mu.Lock()
	if len(seen) != 1 || seen[0].DocumentID != "doc-x.png" {
		t.Errorf("sink got %+v", seen)
	}
	mu.Unlock()

	if err := q.Enqueue(context.Background(), Job{Path: "y.png"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after shutdown err = %v", err)
	}
	q.Shutdown(context.Background())
}

func TestProcessorQueueStatusRetention(t *testing.T) {
	q := NewProcessorQueue(&fakeHandler{}, nil, WithWorkers(1), WithStatusRetention(2))
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		if err := q.Enqueue(context.Background(), Job{Path: id + ".png", TraceID: id}); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}
	q.Shutdown(context.Background())

	for _, id := range []string{"t1", "t2"} {
		if _, ok := q.Status(id); ok {
			t.Errorf("%s should have been evicted", id)
		}
	}
	for _, id := range []string{"t3", "t4"} {
		if s, ok := q.Status(id); !ok || s != constants.ItemStatusCompleted {
			t.Errorf("Status(%s) = %q, %v", id, s, ok)
		}
	}
	q.statusMu.Lock()
	n := len(q.status)
	q.statusMu.Unlock()
	if n != 2 {
		t.Errorf("status entries = %d, want 2", n)
	}
}
