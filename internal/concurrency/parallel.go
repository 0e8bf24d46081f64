// Package concurrency runs per-item work on a bounded worker pool.
package concurrency

import (
	"context"
	"sync"
)

// ParallelOptions bounds a parallel run.
type ParallelOptions struct {
	// MaxWorkers is the number of items in flight at once. 1 processes items
	// sequentially in input order.
	MaxWorkers int
}

// DefaultOptions processes one item at a time.
func DefaultOptions() ParallelOptions {
	return ParallelOptions{MaxWorkers: 1}
}

type outcome[R any] struct {
	index  int
	result R
	err    error
}

// ProcessParallel calls itemFunc for every item and returns the results in
// input order. Items not started before ctx is cancelled keep the zero R and
// report ctx.Err() in the error list.
func ProcessParallel[T any, R any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) ([]R, []error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	results := make(chan outcome[R], len(items))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results <- outcome[R]{index: i, err: err}
					continue
				}
				r, err := itemFunc(ctx, i, items[i])
				results <- outcome[R]{index: i, result: r, err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	ordered := make([]R, len(items))
	errsByIndex := make([]error, len(items))
	for res := range results {
		ordered[res.index] = res.result
		errsByIndex[res.index] = res.err
	}

	var errs []error
	for _, err := range errsByIndex {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return ordered, errs
}
