package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/geocomp/internal/domain/model"
	"github.com/okian/geocomp/pkg/metrics"
)

const (
	defaultMetricsUpdateInterval = 5 * time.Second
	defaultRetention             = 10000
)

// MemoryStore is an in-memory Store. Jobs are kept in submission order.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string

	metricsUpdateInterval time.Duration
	retention             int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store and starts publishing job counts as metrics
// until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		jobs:                  make(map[string]*model.Job),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		retention:             defaultRetention,
		stopCh:                make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.publishMetrics(ctx)
	return s
}

func (s *MemoryStore) publishMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			for status, n := range s.CountByStatus(ctx) {
				metrics.UpdateJobsByStatus(string(status), n)
			}
		}
	}
}

// Close stops the metrics goroutine. Jobs stay readable.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Done is closed once Close has been called.
func (s *MemoryStore) Done() <-chan struct{} { return s.stopCh }

func clone(j *model.Job) *model.Job {
	cp := *j
	cp.Params.Bands = append([]string(nil), j.Params.Bands...)
	return &cp
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, j.ID)
	}
	s.jobs[j.ID] = clone(j)
	s.order = append(s.order, j.ID)
	s.evict()
	return nil
}

// evict drops the oldest finished jobs above the retention cap. Caller holds the lock.
func (s *MemoryStore) evict() {
	excess := len(s.order) - s.retention
	if excess <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.jobs[id].Status.Terminal() {
			delete(s.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(j), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := clone(j)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.jobs[id] = next
	return clone(next), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*model.Job, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, f.Limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Job, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, clone(j))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// CountByStatus implements Store.
func (s *MemoryStore) CountByStatus(_ context.Context) map[model.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.JobStatus]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
