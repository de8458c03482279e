package tiled

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/fitstile/errs"
)

// schedule runs work for tile indices 0..n-1 on at most workers goroutines.
//
// Under AbortOnFirst no tile is dispatched after the first failure; tiles
// already running finish and the first failure is returned. Under CollectAll
// every tile runs and all failures are returned as errs.TileErrors. A
// cancelled ctx stops dispatching in both modes. The returned failure list
// holds every failure observed, sorted by index.
func schedule(ctx context.Context, n, workers int, policy FailurePolicy, work func(i int) *errs.TileError) (errs.TileErrors, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var (
		mu       sync.Mutex
		failures []*errs.TileError
	)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// a slot may free up only after another tile failed
			if gctx.Err() != nil {
				return nil
			}
			te := work(i)
			if te == nil {
				return nil
			}
			mu.Lock()
			failures = append(failures, te)
			mu.Unlock()
			if policy == AbortOnFirst {
				return te
			}

			return nil
		})
	}

	firstErr := g.Wait()
	all := errs.NewTileErrors(failures)

	if err := ctx.Err(); err != nil {
		return all, errors.Wrap(err, "tile dispatch cancelled")
	}
	if policy == AbortOnFirst && firstErr != nil {
		return all, firstErr
	}
	if len(all) > 0 {
		return all, all
	}

	return nil, nil
}
