package async

import (
	"context"
	"time"

	"github.com/platinummonkey/kensaku/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, logger, 2*time.Minute, "tokenizer warm-up", func(ctx context.Context) error {
//	    return tok.Warm(ctx)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}

// Result pairs an item with the error its task returned
type Result[T any] struct {
	Item T
	Err  error
}

// Batch runs fn for every item with at most workers tasks in flight. Each
// task gets its own timeout, which fn must honor through its context; a
// panic or timeout fails that item only.
// Items not yet started when ctx is cancelled fail with ctx.Err().
//
// Results come back in input order, one per item.
//
// Example:
//
//	results := Batch(ctx, ids, 8, 30*time.Second, func(ctx context.Context, id int64) error {
//	    return rebuild(ctx, id)
//	})
//	for _, r := range results {
//	    if r.Err != nil { ... }
//	}
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []Result[T] {

	if workers <= 0 {
		workers = 1
	}

	results := make([]Result[T], len(items))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		results[i].Item = item

		// Go blocks while the limit is reached, so a cancelled context is
		// noticed before each launch.
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		i, item := i, item
		g.Go(func() error {
			results[i].Err = runTask(ctx, timeout, item, fn)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func runTask[T any](parent context.Context, timeout time.Duration, item T, fn func(context.Context, T) error) (err error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx, item)
}

// Failed returns the results whose task failed
func Failed[T any](results []Result[T]) []Result[T] {
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
