package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for indexes [0, n) on at most workers goroutines and returns the
// first error. Callers write results into per-index slots, so no state is shared.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n == 0 || fn == nil {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
