package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manekies/document-converter-app/constants"
)

type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration
	sink    func(ItemResult)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and sends on ch. Workers only take statusMu.
	mu       sync.Mutex
	closed   bool
	statusMu sync.Mutex
	status   map[string]constants.ItemStatus
	finished []string // terminal trace ids, oldest first
	retain   int
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithStatusRetention caps how many finished jobs Status still reports. Queued and
// in-flight jobs are always tracked.
func WithStatusRetention(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.retain = n
		}
	}
}

// WithResultSink receives every finished item. It is called from worker goroutines.
func WithResultSink(fn func(ItemResult)) Option {
	return func(q *ProcessorQueue) {
		q.sink = fn
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		status:  map[string]constants.ItemStatus{},
		retain:  1024,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	q.setStatus(job.TraceID, constants.ItemStatusProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	resp, err := q.handler.ProcessFile(ctx, job.Path, job.Request)
	cancel()

	res := ItemResult{Path: job.Path, TraceID: job.TraceID, Response: resp, Err: err}
	if err != nil {
		res.Status = constants.ItemStatusFailed
		q.logger.Error("queue.item.failed", "worker_id", workerID, "path", job.Path, "trace_id", job.TraceID, "error", err)
	} else {
		res.Status = constants.ItemStatusCompleted
		res.DocumentID = resp.DocumentID
		res.RunID = resp.RunID
		q.logger.Info("queue.item.ok",
			"worker_id", workerID,
			"path", job.Path,
			"engine", resp.Engine,
			"waited_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	q.finish(job.TraceID, res.Status)
	if q.sink != nil {
		q.sink(res)
	}
}

// Enqueue blocks when the queue is full. The job's TraceID is assigned when empty.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.TraceID == "" {
		job.TraceID = uuid.New().String()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	q.setStatus(job.TraceID, constants.ItemStatusQueued)
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "path", job.Path, "trace_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.statusMu.Lock()
		delete(q.status, job.TraceID)
		q.statusMu.Unlock()
		return ctx.Err()
	}
}

// Status reports the last known state of a job by trace id.
func (q *ProcessorQueue) Status(traceID string) (constants.ItemStatus, bool) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	s, ok := q.status[traceID]
	return s, ok
}

func (q *ProcessorQueue) setStatus(traceID string, s constants.ItemStatus) {
	q.statusMu.Lock()
	q.status[traceID] = s
	q.statusMu.Unlock()
}

// finish records a terminal status and evicts the oldest finished entries beyond retain.
func (q *ProcessorQueue) finish(traceID string, s constants.ItemStatus) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	q.status[traceID] = s
	q.finished = append(q.finished, traceID)
	for len(q.finished) > q.retain {
		delete(q.status, q.finished[0])
		q.finished = q.finished[1:]
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
