// Package fanout runs one independent unit of work per input item and joins
// all of them. Each outcome is reported when its unit completes; a failing
// unit never cancels, delays or alters its siblings.
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Limit caps the number of units running at once. Zero or negative means
	// every item starts immediately.
	Limit int
}

// Run starts fn for every item and waits for all of them. report is called
// once per item, from the goroutine that ran it, as soon as fn returns.
// Completion order is unspecified.
//
// Run only fails when a unit could not be joined, i.e. fn or report
// panicked. That is fatal for the batch.
func Run[T, R any](
	ctx context.Context,
	items []T,
	opts Options,
	fn func(context.Context, T) (R, error),
	report func(T, R, error),
) error {
	// Plain group, not WithContext: a failed item must not cancel the others.
	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	log.Debug().Int("items", len(items)).Int("limit", opts.Limit).Msg("fan-out started")
	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("unit %d panicked: %v\n%s", i, r, debug.Stack())
				}
			}()
			res, ferr := fn(ctx, item)
			report(item, res, ferr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to join fan-out units: %w", err)
	}
	log.Debug().Int("items", len(items)).Msg("fan-out joined")
	return nil
}
