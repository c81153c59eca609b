// Package pool provides the bounded worker pool both phases run on.
// Tasks are executed FIFO; a Run call returns only once every started
// task has stopped, which is the barrier the controller relies on
// between the map and reduce phases.
package pool

import (
	"context"
	"runtime"
	"sync"
)

// Task is one unit of work: a map task (one shard) or a reduce task
// (one partition). Tasks check ctx at their own checkpoints, so
// cancellation latency is bounded by one record or one group.
type Task func(ctx context.Context) error

// Pool executes tasks on a fixed number of workers.
type Pool struct {
	workers int
}

// New creates a pool with the given worker count, defaulting to the
// number of available CPUs.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool's concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Run executes all tasks and blocks until every started task has
// returned. The first task error cancels the remaining tasks and is
// returned; tasks never started because of cancellation are skipped.
// If ctx is cancelled externally, Run returns ctx.Err() after the
// in-flight tasks reach their next checkpoint.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan Task)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					continue
				}
				if err := task(ctx); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
