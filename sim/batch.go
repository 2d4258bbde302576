package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/filecoin-project/go-dssim/dsbb"
)

// RunMany executes count independently-configured runs concurrently and
// returns their property reports in order. Each run owns its own engine; runs
// share no state. parallelism bounds the number of concurrently hosted
// engines; values below 1 impose no bound.
func RunMany(ctx context.Context, count, parallelism int, configure func(i int) []Option) ([]*dsbb.PropertyReport, error) {
	reports := make([]*dsbb.PropertyReport, count)
	eg, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for i := 0; i < count; i++ {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sm, err := NewSimulation(configure(i)...)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			report, err := sm.Run()
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
