package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/integrations"
	"github.com/whatschanged/whatschanged/pkg/integrations/github"
	"github.com/whatschanged/whatschanged/pkg/integrations/npm"
	"github.com/whatschanged/whatschanged/pkg/releases"
	"github.com/whatschanged/whatschanged/pkg/resolver"
	"github.com/whatschanged/whatschanged/pkg/store"
)

// fakeRegistry maps package names to repository URLs; unknown names are 404.
type fakeRegistry struct {
	mu    sync.Mutex
	repos map[string]string
	calls int
}

func (f *fakeRegistry) FetchRepository(_ context.Context, name string, _ bool) (*npm.RepositoryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	url, ok := f.repos[name]
	if !ok {
		return nil, &errs.Error{Code: errs.ErrCodeFetchFailed, Message: "status 404", Cause: integrations.ErrNotFound, Status: 404}
	}
	return &npm.RepositoryInfo{Name: name, Type: "git", URL: url}, nil
}

// fakeHost serves releases in pages and honours the stop predicate the
// way the paginated client does.
type fakeHost struct {
	mu    sync.Mutex
	pages map[string][][]github.Release
	errs  map[string]error
	calls map[string]int // ListReleases calls per repo
	read  map[string]int // pages served per repo
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		pages: map[string][][]github.Release{},
		errs:  map[string]error{},
		calls: map[string]int{},
		read:  map[string]int{},
	}
}

func (f *fakeHost) ListReleases(_ context.Context, owner, repo string, stop func(github.Release) bool) ([]github.Release, error) {
	key := owner + "/" + repo
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	var out []github.Release
	for _, page := range f.pages[key] {
		f.read[key]++
		out = append(out, page...)
		if stop != nil && hasMatch(page, stop) {
			break
		}
	}
	return out, nil
}

func (f *fakeHost) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func hasMatch(page []github.Release, stop func(github.Release) bool) bool {
	for _, r := range page {
		if stop(r) {
			return true
		}
	}
	return false
}

func rel(tag string) github.Release {
	return github.Release{
		TagName:   tag,
		CreatedAt: "2024-05-01T00:00:00Z",
		HTMLURL:   "https://github.com/x/y/releases/tag/" + tag,
	}
}

type fixture struct {
	cache    *store.ReleaseCache
	registry *fakeRegistry
	host     *fakeHost
	resolver *resolver.Resolver
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	cache := store.NewReleaseCache(db)
	t.Cleanup(func() { cache.Close() })

	f := &fixture{
		cache: cache,
		registry: &fakeRegistry{repos: map[string]string{
			"libfoo": "git+https://github.com/libfoo/libfoo.git",
			"libbar": "https://github.com/acme/libbar",
			"gitlab": "https://gitlab.com/acme/gitlab",
		}},
		host: newFakeHost(),
	}
	f.host.pages["libfoo/libfoo"] = [][]github.Release{
		{rel("v1.3.0"), rel("v1.2.1")},
		{rel("v1.2.0"), rel("v1.1.0")},
		{rel("v1.0.0")},
	}
	f.host.pages["acme/libbar"] = [][]github.Release{{rel("2.0.0"), rel("1.0.0")}}
	f.resolver = resolver.New(cache, resolver.NewNpmLocator(f.registry, false), f.host, resolver.Options{Concurrency: 4})
	return f
}

func tags(t *testing.T, rs []releases.Release) []string {
	t.Helper()
	var out []string
	for _, r := range rs {
		n, ok := r.(releases.WithReleaseNote)
		require.True(t, ok, "expected withReleaseNote, got %s", r.Kind())
		out = append(out, n.TagName)
	}
	return out
}

func TestResolve_NewerReleases(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.resolver.Resolve(ctx, []releases.Dependency{{Name: "libfoo", Version: "1.2.0"}})
	require.NoError(t, err)
	require.Equal(t, []string{"v1.3.0", "v1.2.1"}, tags(t, got["libfoo"]))

	// Pagination stopped at the page holding 1.1.0; 1.0.0 was never read.
	require.Equal(t, 2, f.host.read["libfoo/libfoo"])

	// Everything fetched up to the stop page is stored.
	count, err := f.cache.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	n := got["libfoo"][0].(releases.WithReleaseNote)
	require.Equal(t, "1.3.0", n.Version)
	require.Equal(t, "libfoo", n.DependencyName)
}

func TestResolve_UnknownPackage(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "@org/internal", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Equal(t, []releases.Release{releases.PackageNotFound{DependencyName: "@org/internal"}}, got["@org/internal"])
	require.Zero(t, f.host.totalCalls())
}

func TestResolve_NonGitHubRepository(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "gitlab", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Equal(t, releases.KindPackageNotFound, got["gitlab"][0].Kind())
}

func TestResolve_UpToDate(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "libfoo", Version: "1.3.0"}})
	require.NoError(t, err)
	require.Equal(t, []releases.Release{releases.WithoutReleaseNote{DependencyName: "libfoo"}}, got["libfoo"])
}

func TestResolve_FullyCachedMakesNoHostCalls(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deps := []releases.Dependency{{Name: "libfoo", Version: "1.2.0"}, {Name: "libbar", Version: "1.0.0"}}

	first, err := f.resolver.Resolve(ctx, deps)
	require.NoError(t, err)
	hostCalls, registryCalls := f.host.totalCalls(), f.registry.calls

	second, err := f.resolver.Resolve(ctx, deps)
	require.NoError(t, err)
	require.Equal(t, hostCalls, f.host.totalCalls())
	require.Equal(t, registryCalls, f.registry.calls)

	require.Equal(t, tags(t, first["libfoo"]), tags(t, second["libfoo"]))
	require.Equal(t, []string{"2.0.0"}, tags(t, second["libbar"]))
}

func TestResolve_MixedBatchFetchesOnlyMisses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, []releases.Dependency{{Name: "libfoo", Version: "1.2.0"}})
	require.NoError(t, err)

	got, err := f.resolver.Resolve(ctx, []releases.Dependency{
		{Name: "libfoo", Version: "1.2.0"},
		{Name: "libbar", Version: "1.0.0"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.host.calls["libfoo/libfoo"])
	require.Equal(t, 1, f.host.calls["acme/libbar"])
	require.Len(t, got, 2)
}

func TestResolve_RateLimitAbortsBatch(t *testing.T) {
	f := setup(t)
	f.host.errs["acme/libbar"] = &errs.RateLimitedError{Reset: time.Now().Add(time.Hour)}

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{
		{Name: "libfoo", Version: "1.2.0"},
		{Name: "libbar", Version: "1.0.0"},
	})
	require.Nil(t, got)
	require.True(t, errs.Is(err, errs.ErrCodeRateLimited))
}

func TestResolve_HostFailureAbortsBatch(t *testing.T) {
	f := setup(t)
	f.host.errs["libfoo/libfoo"] = errs.FetchFailed(500, "status 500")

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "libfoo", Version: "1.2.0"}})
	require.Nil(t, got)
	require.True(t, errs.Is(err, errs.ErrCodeFetchFailed))
}

func TestResolve_MissingRepositoryIsNotFound(t *testing.T) {
	f := setup(t)
	f.host.errs["libfoo/libfoo"] = &errs.Error{Code: errs.ErrCodeFetchFailed, Message: "status 404", Status: 404}

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "libfoo", Version: "1.2.0"}})
	require.NoError(t, err)
	require.Equal(t, releases.KindPackageNotFound, got["libfoo"][0].Kind())
}

func TestResolve_InvalidInstalledVersion(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "libfoo", Version: "latest"}})
	require.NoError(t, err)
	require.Equal(t, releases.KindPackageNotFound, got["libfoo"][0].Kind())
	require.Zero(t, f.registry.calls)
	require.Zero(t, f.host.totalCalls())
}

func TestResolve_SkipsDraftsPrereleasesAndBadTags(t *testing.T) {
	f := setup(t)
	draft := rel("v3.0.0")
	draft.Draft = true
	pre := rel("v2.5.0")
	pre.Prerelease = true
	f.host.pages["acme/libbar"] = [][]github.Release{{draft, pre, rel("nightly"), rel("plugin@2.1.0"), rel("1.0.0")}}

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{{Name: "libbar", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Equal(t, []string{"plugin@2.1.0"}, tags(t, got["libbar"]))
	require.Equal(t, "2.1.0", got["libbar"][0].(releases.WithReleaseNote).Version)
}

func TestResolve_NeverEmptyNeverMixed(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{
		{Name: "libfoo", Version: "1.0.0"},
		{Name: "libbar", Version: "2.0.0"},
		{Name: "nope", Version: "1.0.0"},
		{Name: "broken", Version: "x"},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for name, rs := range got {
		require.NotEmpty(t, rs, name)
		if len(rs) > 1 {
			for _, r := range rs {
				require.Equal(t, releases.KindWithReleaseNote, r.Kind(), name)
			}
		}
	}
}

func TestResolve_DuplicateDependencies(t *testing.T) {
	f := setup(t)

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{
		{Name: "libfoo", Version: "1.2.0"},
		{Name: "libfoo", Version: "1.0.0"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"v1.3.0", "v1.2.1"}, tags(t, got["libfoo"]))
	require.Equal(t, 1, f.host.calls["libfoo/libfoo"])
}

func TestResolve_NamesDifferingInCaseKeepBothEntries(t *testing.T) {
	f := setup(t)
	f.registry.repos["JSONStream"] = "git://github.com/dominictarr/JSONStream.git"
	f.registry.repos["jsonstream"] = "https://github.com/dominictarr/JSONStream"
	f.host.pages["dominictarr/JSONStream"] = [][]github.Release{{rel("v1.3.5"), rel("v1.0.0")}}

	got, err := f.resolver.Resolve(context.Background(), []releases.Dependency{
		{Name: "JSONStream", Version: "1.0.0"},
		{Name: "jsonstream", Version: "1.0.0"},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"JSONStream", "jsonstream"}, got.Names())
	require.Equal(t, []string{"v1.3.5"}, tags(t, got["JSONStream"]))
	require.Equal(t, []string{"v1.3.5"}, tags(t, got["jsonstream"]))
}

func TestResolve_Refresh(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deps := []releases.Dependency{{Name: "libbar", Version: "1.0.0"}}

	_, err := f.resolver.Resolve(ctx, deps)
	require.NoError(t, err)

	refreshing := resolver.New(f.cache, resolver.NewNpmLocator(f.registry, true), f.host, resolver.Options{Refresh: true})
	_, err = refreshing.Resolve(ctx, deps)
	require.NoError(t, err)
	require.Equal(t, 2, f.host.calls["acme/libbar"])
}

func TestResolve_CancelledContext(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver.Resolve(ctx, []releases.Dependency{{Name: "libfoo", Version: "1.0.0"}})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := resolver.Options{}.WithDefaults()
	require.Equal(t, 10, opts.Concurrency)
	require.NotNil(t, opts.Logger)

	opts = resolver.Options{Concurrency: 500}.WithDefaults()
	require.Equal(t, resolver.MaxConcurrency, opts.Concurrency)
}
