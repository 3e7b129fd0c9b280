// internal/harness/parallel.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const teardownTimeout = 30 * time.Second

// RunnerFactory builds the Runner for one worker. Each worker needs its own session manager.
type RunnerFactory func(worker int) (*Runner, error)

// RunParallel spreads units over workers, each with its own Runner and so its own browser.
// Results are returned in unit order. A setup failure stops the run; units that never ran
// carry ErrNotRun. Teardown happens for every worker that set up, even after cancellation.
func RunParallel(ctx context.Context, workers int, newRunner RunnerFactory, units []Unit, logger *zap.Logger) ([]UnitResult, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers > len(units) {
		workers = len(units)
	}

	results := make([]UnitResult, len(units))
	started := make([]bool, len(units))
	jobs := make(chan int)

	var (
		teardownMu   sync.Mutex
		teardownErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range units {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			wlog := logger.With(zap.Int("worker_id", w))
			r, err := newRunner(w)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			if err := r.Setup(gctx); err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			defer func() {
				tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
				defer cancel()
				if err := r.Teardown(tctx); err != nil {
					wlog.Warn("Worker teardown failed.", zap.Error(err))
					teardownMu.Lock()
					teardownErrs = append(teardownErrs, fmt.Errorf("worker %d: %w", w, err))
					teardownMu.Unlock()
				}
			}()

			for {
				select {
				case <-gctx.Done():
					return nil
				case i, ok := <-jobs:
					if !ok {
						return nil
					}
					started[i] = true
					results[i] = r.RunUnit(gctx, units[i].Name, units[i].Fn)
				}
			}
		})
	}

	runErr := g.Wait()
	for i := range units {
		if !started[i] {
			results[i] = UnitResult{Name: units[i].Name, Err: ErrNotRun}
		}
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	return results, errors.Join(append([]error{runErr}, teardownErrs...)...)
}
