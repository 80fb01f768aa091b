package workerpool

import (
	"context"
	"sync/atomic"

	"friendgeo/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Handler processes one job. A non-nil error is fatal for the whole run:
// handlers report per-job failures through their own results and return an
// error only when nothing else should proceed.
type Handler[T any] func(ctx context.Context, workerID int, job T) error

// Pool runs a bounded number of workers that all pull from one shared queue,
// so no two workers ever hold the same job.
type Pool[T any] struct {
	name       string
	numWorkers int
	logger     logger.Logger
	started    atomic.Int64
	finished   atomic.Int64
}

// MaxWorkers caps the workers of one pool
const MaxWorkers = 10

// New creates a pool with numWorkers clamped to 1..MaxWorkers
func New[T any](name string, numWorkers int, log logger.Logger) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pool[T]{
		name:       name,
		numWorkers: numWorkers,
		logger:     log.WithField("pool", name),
	}
}

// Run feeds jobs to the workers and blocks until every job was handled, a
// handler failed, or ctx was cancelled. Cancellation stops workers between
// jobs; a job already in a handler runs to completion.
func (p *Pool[T]) Run(ctx context.Context, jobs []T, handle Handler[T]) error {
	p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"jobs":        len(jobs),
	})

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan T, p.numWorkers*2)

	g.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < p.numWorkers; i++ {
		id := i
		g.Go(func() error {
			return p.worker(gctx, id, queue, handle)
		})
	}

	err := g.Wait()
	if err == nil {
		// a cancelled parent can empty the queue without any handler failing
		err = ctx.Err()
	}

	p.logger.DebugWithFields("Worker pool stopped", map[string]interface{}{
		"started":  p.started.Load(),
		"finished": p.finished.Load(),
	})
	return err
}

func (p *Pool[T]) worker(ctx context.Context, id int, queue <-chan T, handle Handler[T]) error {
	for job := range queue {
		if err := ctx.Err(); err != nil {
			p.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return err
		}

		p.started.Add(1)
		if err := handle(ctx, id, job); err != nil {
			p.logger.WarnWithFields("Worker aborting run", map[string]interface{}{
				"worker_id": id,
				"error":     err.Error(),
			})
			return err
		}
		p.finished.Add(1)
	}
	return nil
}

// Started counts jobs handed to a handler
func (p *Pool[T]) Started() int64 {
	return p.started.Load()
}

// Finished counts jobs whose handler returned nil
func (p *Pool[T]) Finished() int64 {
	return p.finished.Load()
}

func (p *Pool[T]) Workers() int {
	return p.numWorkers
}
