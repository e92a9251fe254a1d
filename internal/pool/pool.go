// Package pool runs bounded fan-out over independent tasks.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run applies fn to every item with at most width concurrent calls and
// delivers results in completion order. Submission blocks while the pool is
// full. Once ctx is cancelled no further items are submitted; running calls
// finish and their results are still delivered. The channel closes after the
// last result.
//
// fn reports its own failures inside R; Run never aborts on a task failure.
func Run[T, R any](ctx context.Context, width int, items []T, fn func(context.Context, T) R) <-chan R {
	if width <= 0 {
		width = 1
	}
	out := make(chan R, width)

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(width)
		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out <- fn(ctx, item)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // tasks never return errors
	}()

	return out
}

// Collect drains a result channel into a slice.
func Collect[R any](results <-chan R) []R {
	var all []R
	for r := range results {
		all = append(all, r)
	}
	return all
}
