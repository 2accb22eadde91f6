// Package queue hands accepted export jobs to the worker pool.
//
// The in-memory implementation is a bounded channel. A full queue refuses
// the job with ErrFull rather than blocking the submitter.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/geocomp/internal/domain/model"
	"github.com/okian/geocomp/pkg/metrics"
)

const defaultCapacity = 1000

// Job is the payload type flowing through the queue.
type Job = model.Job

// Queue accepts jobs without blocking and streams them to consumers.
type Queue interface {
	// Enqueue adds j or reports ErrFull / ErrClosed.
	Enqueue(ctx context.Context, j Job) error
	// Dequeue streams queued jobs; the channel closes after Close once drained.
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue holding at most capacity jobs.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity, name: "queue"}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.updateGauges()
	return q
}

// Enqueue adds j to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job travels by value over the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return q.reject("closed", ErrClosed, j.ID)
	}
	if err := ctx.Err(); err != nil {
		return q.reject("context_cancelled", err, j.ID)
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return nil
	default:
		return q.reject("capacity_exceeded", ErrFull, j.ID)
	}
}

func (q *InMemoryQueue) reject(reason string, err error, id string) error {
	metrics.RecordQueueRejected()
	metrics.RecordErrorByComponent(q.name, reason)
	return fmt.Errorf("enqueue job %s: %w", id, err)
}

// Dequeue returns a channel fed from the queue until it is closed and
// drained, or ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				q.updateGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Len reports the number of jobs waiting for a worker.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.updateGauges()
	return len(q.jobs)
}

// Capacity returns the maximum number of waiting jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.jobs)
		q.closed = true
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
