package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flopezo/genevalidator/pkg/blast"
)

// job is one query waiting for validation
type job struct {
	seq   int
	index int
	rec   *blast.QueryRecord
}

// result is a validated query tagged with the sequence number of its job
type result struct {
	seq int
	q   Query
}

// process pulls jobs from next and reports their queries in pull order.
// With more than one worker, work runs concurrently while a reorder buffer
// keeps the reports in order.
func (c *Coordinator) process(ctx context.Context, st State,
	next func() (job, bool, error), work func(context.Context, job) (Query, error)) (State, error) {
	if c.workers <= 1 {
		return c.processSequential(ctx, st, next, work)
	}
	return c.processParallel(ctx, st, next, work)
}

func (c *Coordinator) processSequential(ctx context.Context, st State,
	next func() (job, bool, error), work func(context.Context, job) (Query, error)) (State, error) {
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		j, ok, err := next()
		if err != nil {
			return st, err
		}
		if !ok {
			return st, nil
		}
		q, err := work(ctx, j)
		if err != nil {
			return st, err
		}
		if st, err = c.emit(st, q); err != nil {
			return st, err
		}
	}
}

func (c *Coordinator) processParallel(ctx context.Context, st State,
	next func() (job, bool, error), work func(context.Context, job) (Query, error)) (State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan job, c.workers*2)
	results := make(chan result, c.workers*2)

	// The result stream has a single forward-only cursor, so one producer
	// feeds every worker.
	g.Go(func() error {
		defer close(jobs)
		for n := 0; ; n++ {
			j, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			j.seq = n
			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				q, err := work(gctx, j)
				if err != nil {
					return err
				}
				select {
				case results <- result{seq: j.seq, q: q}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	pending := make(map[int]Query)
	want := 0
	var emitErr error
	for r := range results {
		if emitErr != nil {
			continue
		}
		pending[r.seq] = r.q
		for {
			q, ok := pending[want]
			if !ok {
				break
			}
			delete(pending, want)
			want++
			if st, emitErr = c.emit(st, q); emitErr != nil {
				cancel()
				break
			}
		}
	}

	err := g.Wait()
	if emitErr != nil {
		return st, emitErr
	}
	return st, err
}
