// Package parallel provides a bounded, order-preserving parallel map.
//
// The resolver fans out one registry lookup and one release listing per
// dependency. Both hit rate-limited third-party APIs, so fan-out must be
// bounded: [BoundedMap] never runs more than limit workers at once and
// starts the next queued item as soon as one finishes.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency used for calls against external APIs
// when no explicit limit is configured.
const DefaultLimit = 10

// BoundedMap calls fn for every item with at most limit calls in flight and
// returns the results in input order. A limit <= 0 means no limit.
//
// The first error cancels the context passed to the remaining calls and is
// returned; no partial result is returned in that case.
func BoundedMap[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if limit <= 0 {
		limit = -1
	}
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
