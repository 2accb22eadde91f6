// Package service wires the composite pipeline, the job store, the queue and
// the worker pool into the export service used by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/geocomp/internal/adapters/geotiff"
	jobqueue "github.com/okian/geocomp/internal/adapters/mq/queue"
	workerpool "github.com/okian/geocomp/internal/adapters/mq/worker"
	"github.com/okian/geocomp/internal/adapters/repository"
	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/model"
	"github.com/okian/geocomp/internal/domain/types"
	"github.com/okian/geocomp/pkg/logger"
	"github.com/okian/geocomp/pkg/metrics"
)

// Errors returned by the service itself.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoPipeline = errors.New("no composite pipeline configured")
	ErrNoSink     = errors.New("no export sink configured")
)

// Builder turns a composite request into a lazy composite.
type Builder interface {
	Build(ctx context.Context, req composite.Request) (*composite.Composite, error)
}

// Sink stores exported files and knows where a key ends up.
type Sink interface {
	workerpool.Sink
	Location(key string) string
}

// Service implements export.Submitter and the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	pipeline Builder
	store    repository.Store
	queue    jobqueue.Queue
	pool     *workerpool.Pool
	encoder  workerpool.Encoder
	sink     Sink

	// Configuration
	workerCount      int
	queueSize        int
	defaultMaxPixels int64
	jobTimeout       time.Duration
	stagingDir       string
	ownStore         bool

	// State
	started bool

	logger logger.Logger
}

var _ export.Submitter = (*Service)(nil)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of export workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline sets the composite builder used by Export.
func WithPipeline(b Builder) Option {
	return func(s *Service) { s.pipeline = b }
}

// WithStore sets the job store. The service creates an in-memory one otherwise.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSink sets where exported files go.
func WithSink(sink Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithEncoder overrides the GeoTIFF encoder.
func WithEncoder(e workerpool.Encoder) Option {
	return func(s *Service) {
		if e != nil {
			s.encoder = e
		}
	}
}

// WithDefaultMaxPixels sets the ceiling applied to requests that carry none.
func WithDefaultMaxPixels(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMaxPixels = n
		}
	}
}

// WithJobTimeout bounds the time one export may run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) { s.jobTimeout = d }
}

// WithStagingDir sets where encoded files are written before upload.
func WithStagingDir(dir string) Option {
	return func(s *Service) { s.stagingDir = dir }
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1000,
		defaultMaxPixels: export.DefaultMaxPixels,
		stagingDir:       os.TempDir(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the store, queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.sink == nil {
		return ErrNoSink
	}
	if s.encoder == nil {
		geotiff.Register()
		s.encoder = geotiff.NewCodec(export.NoData)
	}

	s.logger.Info(ctx, "starting export service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.ownStore = true
	}
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithName("export_queue"),
	)
	metrics.UpdateQueueCapacity(s.queueSize)

	var wopts []workerpool.Option
	if s.jobTimeout > 0 {
		wopts = append(wopts, workerpool.WithJobTimeout(s.jobTimeout))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.Deps{
		Tracker:    s.store,
		Encoder:    s.encoder,
		Sink:       s.sink,
		StagingDir: s.stagingDir,
	}, wopts...)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "export service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int64("defaultMaxPixels", s.defaultMaxPixels),
	)

	return nil
}

// Stop shuts the service down after the jobs in flight. Jobs still queued,
// including any a worker had taken off the queue but not started, are
// abandoned and stay queued in the store. Drain runs them instead.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping export service...")

	s.pool.Stop()
	_ = s.queue.Close()
	s.closeStore()

	s.started = false
	s.logger.Info(context.Background(), "export service stopped")
}

// Drain stops accepting jobs and waits until every queued job has run.
// Jobs stay readable through Job and Jobs afterwards.
func (s *Service) Drain(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	err := s.pool.Shutdown(ctx)
	s.closeStore()
	s.started = false
	s.logger.Info(ctx, "export service drained")
	return err
}

func (s *Service) closeStore() {
	if !s.ownStore {
		return
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// Submit validates p, enforces the pixel ceiling and queues the export. It
// returns as soon as the job is queued.
func (s *Service) Submit(ctx context.Context, src export.Source, p export.Params) (export.JobHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return export.JobHandle{}, ErrNotStarted
	}

	if p.MaxPixels == 0 {
		p.MaxPixels = s.defaultMaxPixels
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		metrics.RecordJobRejected("invalid")
		return export.JobHandle{}, err
	}
	pixels, err := export.CheckPixels(p)
	if err != nil {
		if errors.Is(err, export.ErrTooManyPixels) {
			metrics.RecordJobRejected("max_pixels")
		} else {
			metrics.RecordJobRejected("invalid")
		}
		s.logger.Warn(ctx, "export rejected",
			logger.String("description", p.Description),
			logger.Int64("pixels", pixels),
			logger.Int64("maxPixels", p.MaxPixels),
			logger.Error(err),
		)
		return export.JobHandle{}, err
	}

	j := &model.Job{
		ID:              uuid.NewString(),
		Status:          model.JobQueued,
		Params:          p,
		Source:          src,
		EstimatedPixels: pixels,
		Submitted:       time.Now(),
	}
	if bs, ok := s.sink.(interface{ Bucket() string }); ok {
		j.Bucket = bs.Bucket()
	}
	if err := s.store.Create(ctx, j); err != nil {
		return export.JobHandle{}, fmt.Errorf("record job: %w", err)
	}
	metrics.RecordJobSubmitted()

	h := j.Handle()
	h.Location = s.sink.Location(p.ObjectKey())

	if err := s.queue.Enqueue(ctx, *j); err != nil {
		s.logger.Warn(ctx, "export refused", logger.String("job_id", j.ID), logger.Error(err))
		metrics.RecordJobRejected("backpressure")
		_, _ = s.store.Update(context.WithoutCancel(ctx), j.ID, func(sj *model.Job) error {
			sj.Status = model.JobFailed
			sj.Error = export.ErrBackpressure.Error()
			sj.Finished = time.Now()
			return nil
		})
		h.Status = string(model.JobFailed)
		return h, export.ErrBackpressure
	}

	s.logger.Info(ctx, "export queued",
		logger.String("job_id", j.ID),
		logger.String("description", p.Description),
		logger.String("location", h.Location),
		logger.Int64("pixels", pixels),
	)
	return h, nil
}

// Export builds the requested composite and submits it.
func (s *Service) Export(ctx context.Context, req types.ExportRequest) (export.JobHandle, error) {
	if s.pipeline == nil {
		return export.JobHandle{}, ErrNoPipeline
	}
	comp, err := s.pipeline.Build(ctx, req.Composite)
	if err != nil {
		return export.JobHandle{}, err
	}
	crs := req.CRS
	if crs == "" {
		crs = comp.CRS
	}
	return s.Submit(ctx, comp, export.Params{
		Description: req.Description,
		Folder:      req.Folder,
		Bands:       req.Bands,
		Scale:       req.Scale,
		MaxPixels:   req.MaxPixels,
		CRS:         crs,
		Region:      comp.Region,
	})
}

// Job returns one job by id.
func (s *Service) Job(ctx context.Context, id string) (types.Job, error) {
	st, err := s.jobStore()
	if err != nil {
		return types.Job{}, err
	}
	j, err := st.Get(ctx, id)
	if err != nil {
		return types.Job{}, err
	}
	return types.FromJob(j), nil
}

// Jobs lists jobs newest first, optionally filtered by status.
func (s *Service) Jobs(ctx context.Context, status string, limit int) ([]types.Job, error) {
	st, err := s.jobStore()
	if err != nil {
		return nil, err
	}
	jobs, err := st.List(ctx, repository.Filter{Status: model.JobStatus(status), Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]types.Job, len(jobs))
	for i, j := range jobs {
		out[i] = types.FromJob(j)
	}
	return out, nil
}

func (s *Service) jobStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"defaultMaxPixels": s.defaultMaxPixels,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["totalJobs"] = s.store.Count(ctx)

		byStatus := map[string]int{}
		for st, n := range s.store.CountByStatus(ctx) {
			byStatus[string(st)] = n
		}
		stats["jobs"] = byStatus

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
