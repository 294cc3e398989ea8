package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MinChunk is the smallest range a worker is handed by ParallelFor.
const MinChunk = 64

// ParallelFor splits [0, n) into contiguous chunks of at least minChunk and
// runs fn on each chunk concurrently. Chunks never overlap, so fn may write
// to per-index output without locking. It returns the first error, and
// chunks not yet started are skipped once ctx is done.
func ParallelFor(ctx context.Context, n, minChunk int, fn func(start, end int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	if minChunk < 1 {
		minChunk = 1
	}

	workers := runtime.GOMAXPROCS(0)
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}

	chunkSize := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunkSize {
		start, end := start, min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(start, end)
		})
	}

	return g.Wait()
}
