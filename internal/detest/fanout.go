package detest

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for k in [0, n) with at most workers calls in flight. Each
// call writes only its own slot of preallocated output.
func fanOut(ctx context.Context, workers, n int, fn func(ctx context.Context, k int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k := 0; k < n; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, k)
		})
	}
	return g.Wait()
}
