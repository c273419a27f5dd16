// Package parallel runs index-addressed tasks on a bounded ants pool. Results are
// always written by index so callers observe the same order as a sequential loop.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// NewPool creates a pool of the given size. Panics escaping a task are logged.
func NewPool(size int, logger *slog.Logger) (*ants.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		logger.Error("task panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}

// Run calls fn for every index in [0, n). With a nil pool, or a single task,
// fn runs on the calling goroutine. The error of the lowest failing index is returned.
func Run(ctx context.Context, pool *ants.Pool, n int, fn func(ctx context.Context, i int) error) error {
	if pool == nil || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("task %d panicked: %v", i, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = fn(ctx, i)
		}
		if err := pool.Submit(task); err != nil {
			if errors.Is(err, ants.ErrPoolClosed) {
				wg.Done()
				errs[i] = err
				continue
			}
			// overloaded non-blocking pool
			task()
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
