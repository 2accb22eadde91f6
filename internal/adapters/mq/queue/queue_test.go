package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/model"
)

func newJob(id string) model.Job {
	return model.Job{ID: id, Status: model.JobQueued, Params: export.Params{Description: id, Bands: []string{"B1"}, Scale: 30}}
}

func TestEnqueueDequeue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("empty queue length = %d", l)
	}
	if err := q.Enqueue(ctx, newJob("L8_B1_2022")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("length after enqueue = %d, want 1", l)
	}

	j := <-q.Dequeue(ctx)
	if j.ID != "L8_B1_2022" || j.Params.Bands[0] != "B1" {
		t.Errorf("dequeued %+v", j)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("length after dequeue = %d, want 0", l)
	}
}

func TestFullQueueRefuses(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2), WithName("exports"))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, newJob(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	err := q.Enqueue(ctx, newJob("c"))
	if !errors.Is(err, ErrFull) {
		t.Fatalf("third enqueue error = %v, want ErrFull", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("length = %d, want 2", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("capacity = %d, want 2", c)
	}
}

func TestCancelledContextRefuses(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, newJob("a")); !errors.Is(err, context.Canceled) {
		t.Fatalf("enqueue error = %v, want context.Canceled", err)
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const producers, perProducer = 10, 100

	var produced sync.WaitGroup
	for i := 0; i < producers; i++ {
		produced.Add(1)
		go func(id int) {
			defer produced.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, newJob(fmt.Sprintf("job%d_%d", id, j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		done sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			for j := range q.Dequeue(ctx) {
				mu.Lock()
				seen[j.ID] = true
				mu.Unlock()
			}
		}()
	}

	produced.Wait()
	_ = q.Close()
	done.Wait()

	if len(seen) != producers*perProducer {
		t.Errorf("distinct jobs = %d, want %d", len(seen), producers*perProducer)
	}
}

func TestCloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, newJob("job1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.IsClosed() {
		t.Error("new queue reports closed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("closed queue reports open")
	}
	if err := q.Enqueue(ctx, newJob("job2")); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after close = %v, want ErrClosed", err)
	}

	var got []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-ch:
			if !ok {
				if len(got) != 1 || got[0] != "job1" {
					t.Errorf("drained %v, want [job1]", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("second close: %v", err)
				}
				return
			}
			got = append(got, j.ID)
		case <-timeout:
			t.Fatal("dequeue channel not closed after drain")
		}
	}
}
