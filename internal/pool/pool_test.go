package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesAllTasks(t *testing.T) {
	p := New(4)
	var count int32
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count != 20 {
		t.Errorf("ran %d tasks, want 20", count)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	const workers = 3
	p := New(workers)

	var mu sync.Mutex
	inFlight, peak := 0, 0

	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if peak > workers {
		t.Errorf("observed %d concurrent tasks, bound is %d", peak, workers)
	}
}

func TestFirstErrorWinsAndCancelsRest(t *testing.T) {
	p := New(1)
	boom := errors.New("boom")
	var started int32

	tasks := []Task{
		func(ctx context.Context) error { atomic.AddInt32(&started, 1); return nil },
		func(ctx context.Context) error { atomic.AddInt32(&started, 1); return boom },
		func(ctx context.Context) error { atomic.AddInt32(&started, 1); return nil },
		func(ctx context.Context) error { atomic.AddInt32(&started, 1); return nil },
	}
	err := p.Run(context.Background(), tasks)
	if !errors.Is(err, boom) {
		t.Fatalf("expected first task error, got %v", err)
	}
	// With one worker the FIFO order is deterministic: tasks after the
	// failing one must be skipped.
	if started != 2 {
		t.Errorf("%d tasks started, want 2", started)
	}
}

func TestExternalCancellationStopsNewTasks(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	var ran int32
	tasks := []Task{
		func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			cancel()
			return nil
		},
		func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return nil },
	}
	err := p.Run(ctx, tasks)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran != 1 {
		t.Errorf("%d tasks ran after cancellation, want 1", ran)
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	if p := New(0); p.Workers() < 1 {
		t.Errorf("default worker count is %d", p.Workers())
	}
}
