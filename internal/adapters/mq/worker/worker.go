// Package worker runs export jobs taken from the queue: render the
// composite, keep the requested bands, encode and upload.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/geocomp/internal/adapters/mq/queue"
	"github.com/okian/geocomp/internal/domain/model"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/pkg/logger"
	"github.com/okian/geocomp/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// ErrNoSource is recorded for jobs that carry nothing to render.
var ErrNoSource = errors.New("job has no source")

// Job is what workers read off the queue.
type Job = model.Job

// Tracker records job state transitions.
type Tracker interface {
	Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error)
}

// Encoder writes an image to a local file.
type Encoder interface {
	Write(path string, img *raster.Image) error
}

// Sink stores an encoded file under key and reports where it went.
type Sink interface {
	Upload(ctx context.Context, key, path string) (string, int64, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Deps are the collaborators shared by every worker of a pool.
type Deps struct {
	Tracker    Tracker
	Encoder    Encoder
	Sink       Sink
	StagingDir string
}

// Worker processes jobs until its queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	deps       Deps
	name       string
	jobTimeout time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, deps Deps, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		deps:     deps,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "export failed",
					logger.String("job_id", j.ID),
					logger.String("description", j.Params.Description),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process runs one job and records its outcome. The returned error is the
// export failure, already stored on the job.
func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.WorkerBusy(1)
	defer func() {
		metrics.WorkerBusy(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.deps.Tracker.Update(ctx, j.ID, func(s *model.Job) error {
		s.Status = model.JobRunning
		s.Started = start
		return nil
	}); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	w.logger.Info(ctx, "export started", logger.String("job_id", j.ID), logger.String("description", j.Params.Description))

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	location, size, pixels, err := w.export(ctx, j)
	if err != nil {
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", "export_failed")
		// The job context may be done; record the failure regardless.
		_, uerr := w.deps.Tracker.Update(context.WithoutCancel(ctx), j.ID, func(s *model.Job) error {
			s.Status = model.JobFailed
			s.Error = err.Error()
			s.Finished = time.Now()
			return nil
		})
		return errors.Join(err, uerr)
	}

	metrics.RecordJobCompleted()
	metrics.RecordExportedPixels(pixels)
	metrics.RecordExportedBytes(size)
	if _, err := w.deps.Tracker.Update(ctx, j.ID, func(s *model.Job) error {
		s.Status = model.JobCompleted
		s.Location = location
		s.Bytes = size
		s.Finished = time.Now()
		return nil
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.logger.Info(ctx, "export completed",
		logger.String("job_id", j.ID),
		logger.String("location", location),
		logger.Int64("bytes", size),
		logger.Int64("pixels", pixels),
		logger.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func (w *InMemoryWorker) export(ctx context.Context, j Job) (string, int64, int64, error) { //nolint:gocritic // hugeParam
	if j.Source == nil {
		return "", 0, 0, ErrNoSource
	}
	grid, err := j.Params.Grid()
	if err != nil {
		return "", 0, 0, err
	}
	img, err := j.Source.Render(ctx, grid)
	if err != nil {
		return "", 0, 0, err
	}
	sel, err := img.Select(j.Params.Bands...)
	if err != nil {
		return "", 0, 0, err
	}
	sel.ID = j.Params.Description

	f, err := os.CreateTemp(w.deps.StagingDir, "export-*.tif")
	if err != nil {
		return "", 0, 0, fmt.Errorf("stage export: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	defer os.Remove(path)

	if err := w.deps.Encoder.Write(path, sel); err != nil {
		return "", 0, 0, fmt.Errorf("encode: %w", err)
	}

	uploadStart := time.Now()
	location, size, err := w.deps.Sink.Upload(ctx, j.Params.ObjectKey(), path)
	metrics.RecordUploadLatency(float64(time.Since(uploadStart).Milliseconds()))
	if err != nil {
		return "", 0, 0, fmt.Errorf("upload: %w", err)
	}
	return location, size, int64(grid.Len()) * int64(len(j.Params.Bands)), nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, deps Deps, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, deps, append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater publishes runtime gauges until the pool stops.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			metrics.UpdateWorkerCount(len(p.workers))
		}
	}
}

// Stop stops all workers after their current job without draining the queue.
// Each worker's relay may already hold one job taken off the queue; such a
// job is dropped and stays queued in the store, so Len can undercount the
// store's queued jobs afterwards. Use Shutdown to run every queued job.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.signal()
	}

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits until workers have drained it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var err error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			err = fmt.Errorf("drain timed out: %w", shutdownCtx.Err())
		}
	}
	p.stopOnce.Do(func() { close(p.shutdown) })

	return err
}

// ensure the in-memory queue satisfies the worker contract.
var _ Queue = (*queue.InMemoryQueue)(nil)
