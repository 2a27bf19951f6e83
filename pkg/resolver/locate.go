package resolver

import (
	"context"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/integrations"
	"github.com/whatschanged/whatschanged/pkg/integrations/github"
	"github.com/whatschanged/whatschanged/pkg/integrations/npm"
	"github.com/whatschanged/whatschanged/pkg/releases"
)

// Registry reads a package's declared repository.
type Registry interface {
	FetchRepository(ctx context.Context, name string, refresh bool) (*npm.RepositoryInfo, error)
}

// NpmLocator locates repositories through the npm registry.
type NpmLocator struct {
	registry Registry
	refresh  bool
}

// NewNpmLocator creates a Locator backed by registry. If refresh is true the
// registry response cache is bypassed.
func NewNpmLocator(registry Registry, refresh bool) *NpmLocator {
	return &NpmLocator{registry: registry, refresh: refresh}
}

// Locate implements [Locator].
func (l *NpmLocator) Locate(ctx context.Context, dep releases.Dependency) (releases.RepositoryRef, error) {
	info, err := l.registry.FetchRepository(ctx, dep.Name, l.refresh)
	if err != nil {
		if ctx.Err() != nil {
			return releases.RepositoryRef{}, ctx.Err()
		}
		return releases.RepositoryRef{}, errs.Wrap(errs.ErrCodePackageNotFound, err, "locate %s", dep.Name)
	}
	ref, ok := RefFromURL(dep, info.URL)
	if !ok {
		return releases.RepositoryRef{}, errs.New(errs.ErrCodePackageNotFound, "%s: %q is not a GitHub repository", dep.Name, info.URL)
	}
	return ref, nil
}

// RefFromURL builds the repository reference of dep from a repository URL
// in any of the forms npm documents. ok is false for non-GitHub URLs and
// for owner or repository names GitHub would reject.
func RefFromURL(dep releases.Dependency, url string) (releases.RepositoryRef, bool) {
	owner, repo, ok := integrations.ParseRepoURL(url)
	if !ok || github.ValidateRepoRef(owner, repo) != nil {
		return releases.RepositoryRef{}, false
	}
	return releases.RepositoryRef{
		Owner:           owner,
		Repo:            repo,
		DependencyName:  dep.Name,
		BaselineVersion: dep.Version,
	}, true
}
