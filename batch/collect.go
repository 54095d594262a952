package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Collect drains it, building up to workers batches at a time. The result is
// in the same order Next would have produced.
func Collect(ctx context.Context, it *Iterator, workers int) ([]Batch, error) {
	start := it.next
	batches := make([]Batch, it.n-start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range batches {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			batches[i] = it.build(start + i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	it.next = it.n
	it.current = Batch{}
	return batches, nil
}
