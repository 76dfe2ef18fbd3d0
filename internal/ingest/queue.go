package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/oriondocs/orion/internal/pipeline"
)

// Job is one queued document awaiting ingestion.
type Job struct {
	DocumentID       string
	UserID           string
	OriginalFilename string
	FilePath         string
	MIMEType         string
	Description      string
}

// Queue runs the document pipeline for uploaded files on a background worker
// pool. The upload gate enqueues; workers drain.
type Queue struct {
	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	workerCount int
	capacity    int

	running  bool
	jobs     chan Job
	wg       sync.WaitGroup
	cancelFn context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// QueueOption configures the ingest queue.
type QueueOption func(*Queue)

// WithWorkerCount sets the number of concurrent workers.
func WithWorkerCount(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workerCount = n
		}
	}
}

// WithQueueCapacity sets the maximum number of pending jobs.
func WithQueueCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithQueueLogger sets the logger for the queue.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// NewQueue creates an ingest queue backed by the given pipeline.
func NewQueue(p *pipeline.Pipeline, opts ...QueueOption) *Queue {
	q := &Queue{
		pipeline:    p,
		logger:      slog.Default(),
		workerCount: runtime.NumCPU(),
		capacity:    128,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return fmt.Errorf("queue already running")
	}

	ctx, q.cancelFn = context.WithCancel(ctx)
	q.jobs = make(chan Job, q.capacity)
	q.running = true

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.run(ctx, id)
		}(i)
	}

	q.logger.Info("ingest queue started", "workers", q.workerCount, "capacity", q.capacity)
	return nil
}

// Stop drains workers. In-flight pipelines are cancelled through the context
// passed to Start; Stop returns when all workers have exited or ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("ingest queue stopped")
	case <-ctx.Done():
		q.cancelFn()
		<-done
		q.logger.Warn("ingest queue stop timed out; in-flight pipelines cancelled")
	}
	return nil
}

// Enqueue adds a job without blocking. Returns an error when the queue is
// not running or full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running {
		return fmt.Errorf("ingest queue not running")
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("ingest queue full; capacity=%d", q.capacity)
	}
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.jobs == nil {
		return 0
	}
	return len(q.jobs)
}

// Processed returns the number of successfully completed pipelines.
func (q *Queue) Processed() int64 { return q.processed.Load() }

// Failed returns the number of failed pipelines.
func (q *Queue) Failed() int64 { return q.failed.Load() }

func (q *Queue) run(ctx context.Context, id int) {
	log := q.logger.With("worker_id", id)
	log.Debug("ingest worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("ingest worker stopping")
			return
		case job, ok := <-q.jobs:
			if !ok {
				log.Debug("ingest worker drained")
				return
			}
			q.process(ctx, job, log)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job, log *slog.Logger) {
	pctx := pipeline.NewContext(job.DocumentID, job.UserID, job.OriginalFilename, job.FilePath)
	if job.MIMEType != "" {
		pctx.Set(MetaMIMEType, job.MIMEType)
	}
	if job.Description != "" {
		pctx.Set(MetaDescription, job.Description)
	}

	report := q.pipeline.Execute(ctx, pctx)
	if report.Status == pipeline.StatusSuccess {
		q.processed.Add(1)
		return
	}

	q.failed.Add(1)
	log.Error("document ingest failed",
		"document_id", job.DocumentID,
		"user_id", job.UserID,
		"status", report.Status,
		"error", report.Err)
}
