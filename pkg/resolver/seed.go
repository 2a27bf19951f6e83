package resolver

import (
	"context"
	"sync/atomic"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/parallel"
	"github.com/whatschanged/whatschanged/pkg/releases"
)

// SeedConcurrency is the fan-out used by bulk seeding.
const SeedConcurrency = 20

// Seed fetches the full release history of every ref and stores it. Each
// repository is written in its own transaction as soon as it is fetched, so
// an aborted run keeps what it already stored. Missing repositories are
// skipped; rate-limit exhaustion, other host failures and store write
// failures abort the run.
// It returns the number of rows inserted.
func (r *Resolver) Seed(ctx context.Context, refs []releases.RepositoryRef) (int, error) {
	var inserted atomic.Int64
	var done atomic.Int32

	_, err := parallel.BoundedMap(ctx, refs, r.opts.Concurrency,
		func(ctx context.Context, ref releases.RepositoryRef) (struct{}, error) {
			logger := r.opts.Logger.With("dependency", ref.DependencyName, "repo", ref.FullName())
			raw, err := r.host.ListReleases(ctx, ref.Owner, ref.Repo, nil)
			if err != nil {
				if isMissing(err) {
					logger.Warn("skipping repository", "err", err)
					return struct{}{}, nil
				}
				return struct{}{}, err
			}

			notes := normalize(raw, ref.DependencyName, logger)
			n, err := r.cache.Insert(ctx, notes)
			if err != nil {
				logger.Error("release store write failed", "err", err)
				return struct{}{}, errs.Wrap(errs.ErrCodeStorage, err, "store releases of %s", ref.FullName())
			}
			inserted.Add(int64(n))
			logger.Info("seeded", "releases", len(notes), "inserted", n, "progress", done.Add(1), "of", len(refs))
			return struct{}{}, nil
		})
	return int(inserted.Load()), err
}
