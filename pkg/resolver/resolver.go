package resolver

import (
	"context"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/integrations/github"
	"github.com/whatschanged/whatschanged/pkg/observability"
	"github.com/whatschanged/whatschanged/pkg/parallel"
	"github.com/whatschanged/whatschanged/pkg/releases"
	"github.com/whatschanged/whatschanged/pkg/store"
	"github.com/whatschanged/whatschanged/pkg/version"
)

// MaxConcurrency bounds Options.Concurrency.
const MaxConcurrency = 50

// Locator finds the source repository of a dependency.
type Locator interface {
	// Locate returns the repository of dep. Any failure to do so is an
	// error with code PACKAGE_NOT_FOUND, unless ctx was cancelled.
	Locate(ctx context.Context, dep releases.Dependency) (releases.RepositoryRef, error)
}

// ReleaseHost lists the releases of a repository, newest first.
type ReleaseHost interface {
	ListReleases(ctx context.Context, owner, repo string, stop func(github.Release) bool) ([]github.Release, error)
}

// Options configures a Resolver.
type Options struct {
	Concurrency int         // Concurrent locate/fetch calls (default: 10, max 50)
	Logger      *log.Logger // Progress and failure logging (optional)
	Refresh     bool        // Skip the release store lookup
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Concurrency <= 0 {
		opts.Concurrency = parallel.DefaultLimit
	}
	opts.Concurrency = min(opts.Concurrency, MaxConcurrency)
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Resolver reports newer releases for batches of dependencies.
type Resolver struct {
	cache   *store.ReleaseCache
	locator Locator
	host    ReleaseHost
	opts    Options
}

// New creates a Resolver. The cache, locator and host are owned by the
// caller and are not closed by the Resolver.
func New(cache *store.ReleaseCache, locator Locator, host ReleaseHost, opts Options) *Resolver {
	return &Resolver{
		cache:   cache,
		locator: locator,
		host:    host,
		opts:    opts.WithDefaults(),
	}
}

// fetched is the outcome of one dependency that went to the release host.
type fetched struct {
	results []releases.Release
	notes   []releases.WithReleaseNote // every normalized release, for the store
}

// Resolve returns, for each dependency, its releases newer than the
// installed version (newest first), a single withoutReleaseNote entry when
// it is up to date, or a single packageNotFound entry. The map is keyed by
// dependency name as given.
func (r *Resolver) Resolve(ctx context.Context, deps []releases.Dependency) (releases.ReleaseMap, error) {
	start := time.Now()
	logger := r.opts.Logger
	deps = dedupe(deps, logger)
	observability.Resolve().OnResolveStart(ctx, len(deps))

	var cached, uncached []releases.Dependency
	var out []releases.Release
	for _, dep := range deps {
		if _, err := version.Parse(dep.Version); err != nil {
			logger.Warn("installed version is not a version", "dependency", dep.Name, "version", dep.Version)
			out = append(out, releases.PackageNotFound{DependencyName: dep.Name})
			continue
		}
		if hit := r.lookup(ctx, dep); len(hit) > 0 {
			out = append(out, hit...)
			cached = append(cached, dep)
			continue
		}
		uncached = append(uncached, dep)
	}
	cachedCount := len(cached)
	logger.Debug("release store lookup done", "cached", cachedCount, "uncached", len(uncached))

	if len(uncached) == 0 {
		observability.Resolve().OnResolveComplete(ctx, len(deps), cachedCount, 0, time.Since(start), nil)
		return releases.Group(out), nil
	}

	fresh, err := r.resolveUncached(ctx, uncached)
	if err != nil {
		observability.Resolve().OnResolveComplete(ctx, len(deps), cachedCount, 0, time.Since(start), err)
		return nil, err
	}

	var notes []releases.WithReleaseNote
	for _, f := range fresh {
		out = append(out, f.results...)
		notes = append(notes, f.notes...)
	}
	r.persist(ctx, notes)

	observability.Resolve().OnResolveComplete(ctx, len(deps), cachedCount, len(uncached), time.Since(start), nil)
	return releases.Group(out), nil
}

func (r *Resolver) lookup(ctx context.Context, dep releases.Dependency) []releases.Release {
	if r.opts.Refresh {
		return nil
	}
	hit, err := r.cache.Lookup(ctx, dep)
	if err != nil {
		r.opts.Logger.Warn("release store lookup failed", "dependency", dep.Name, "err", err)
		return nil
	}
	return hit
}

func (r *Resolver) resolveUncached(ctx context.Context, deps []releases.Dependency) ([]fetched, error) {
	type located struct {
		dep releases.Dependency
		ref releases.RepositoryRef
		ok  bool
	}

	refs, err := parallel.BoundedMap(ctx, deps, r.opts.Concurrency,
		func(ctx context.Context, dep releases.Dependency) (located, error) {
			ref, err := r.locator.Locate(ctx, dep)
			if err != nil {
				if ctx.Err() != nil {
					return located{}, ctx.Err()
				}
				r.opts.Logger.Info("repository not found", "dependency", dep.Name, "err", err)
				return located{dep: dep}, nil
			}
			return located{dep: dep, ref: ref, ok: true}, nil
		})
	if err != nil {
		return nil, err
	}

	return parallel.BoundedMap(ctx, refs, r.opts.Concurrency,
		func(ctx context.Context, l located) (fetched, error) {
			if !l.ok {
				return notFound(l.dep.Name), nil
			}
			return r.fetch(ctx, l.ref)
		})
}

// fetch lists the releases of ref newer than its baseline.
func (r *Resolver) fetch(ctx context.Context, ref releases.RepositoryRef) (fetched, error) {
	logger := r.opts.Logger.With("dependency", ref.DependencyName, "repo", ref.FullName())
	olderThanBaseline := func(rel github.Release) bool {
		return version.Older(rel.TagName, ref.BaselineVersion)
	}

	raw, err := r.host.ListReleases(ctx, ref.Owner, ref.Repo, olderThanBaseline)
	if err != nil {
		if isMissing(err) {
			logger.Info("repository has no releases listing", "err", err)
			return notFound(ref.DependencyName), nil
		}
		return fetched{}, err
	}

	notes := normalize(raw, ref.DependencyName, logger)
	var newer []releases.WithReleaseNote
	for _, n := range notes {
		if version.Newer(n.Version, ref.BaselineVersion) {
			newer = append(newer, n)
		}
	}
	logger.Debug("fetched releases", "fetched", len(raw), "newer", len(newer))

	if len(newer) == 0 {
		return fetched{
			results: []releases.Release{releases.WithoutReleaseNote{DependencyName: ref.DependencyName}},
			notes:   notes,
		}, nil
	}

	SortNewestFirst(newer)
	results := make([]releases.Release, len(newer))
	for i, n := range newer {
		results[i] = n
	}
	return fetched{results: results, notes: notes}, nil
}

func (r *Resolver) persist(ctx context.Context, notes []releases.WithReleaseNote) {
	if len(notes) == 0 {
		return
	}
	n, err := r.cache.Insert(ctx, notes)
	if err != nil {
		r.opts.Logger.Error("release store write failed", "releases", len(notes), "err", err)
		return
	}
	r.opts.Logger.Debug("release store updated", "inserted", n, "fetched", len(notes))
}

// normalize turns published host releases into notes, skipping drafts,
// prereleases and tags without a version.
func normalize(raw []github.Release, dependency string, logger *log.Logger) []releases.WithReleaseNote {
	notes := make([]releases.WithReleaseNote, 0, len(raw))
	for _, rel := range raw {
		if !rel.Published() {
			continue
		}
		v, err := version.Normalize(rel.TagName)
		if err != nil {
			logger.Debug("skipping tag without version", "tag", rel.TagName)
			continue
		}
		if _, err := version.Parse(v); err != nil {
			logger.Debug("skipping tag without version", "tag", rel.TagName)
			continue
		}
		notes = append(notes, releases.WithReleaseNote{
			DependencyName: dependency,
			TagName:        rel.TagName,
			Version:        v,
			URL:            rel.HTMLURL,
			Name:           rel.Name,
			Body:           rel.Body,
			CreatedAt:      rel.CreatedAt,
		})
	}
	return notes
}

// isMissing reports whether err is the release host answering 404.
func isMissing(err error) bool {
	return errs.Is(err, errs.ErrCodeFetchFailed) && errs.StatusOf(err) == http.StatusNotFound
}

func notFound(name string) fetched {
	return fetched{results: []releases.Release{releases.PackageNotFound{DependencyName: name}}}
}

// SortNewestFirst orders notes by version, newest first, keeping the host's
// order for equal versions.
func SortNewestFirst(notes []releases.WithReleaseNote) {
	slices.SortStableFunc(notes, func(a, b releases.WithReleaseNote) int {
		return version.Desc(a.Version, b.Version)
	})
}

// dedupe keeps the first dependency of each name as given. Names differing
// only in case stay separate: npm still serves legacy mixed-case packages,
// and every requested name needs its own entry in the result.
func dedupe(deps []releases.Dependency, logger *log.Logger) []releases.Dependency {
	seen := make(map[string]bool, len(deps))
	out := make([]releases.Dependency, 0, len(deps))
	for _, d := range deps {
		name := strings.TrimSpace(d.Name)
		if seen[name] {
			logger.Debug("duplicate dependency ignored", "dependency", d.Name, "version", d.Version)
			continue
		}
		seen[name] = true
		d.Name = name
		out = append(out, d)
	}
	return out
}
