package github

import (
	"context"
	"fmt"
	"net/url"

	"github.com/whatschanged/whatschanged/pkg/cache"
	"github.com/whatschanged/whatschanged/pkg/integrations"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// PerPage is the page size requested from the releases listing (the API maximum).
const PerPage = 100

// Client lists repository releases through the GitHub REST API.
// Release listings are never served from the response cache; the release
// store is the cache for them.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
// An empty baseURL selects [DefaultBaseURL].
func NewClient(token, baseURL string) *Client {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client:  integrations.NewClient(cache.NewNullCache(), "github:", 0, headers),
		baseURL: baseURL,
	}
}

// ListReleases returns the releases of owner/repo, newest first as the API
// orders them. Pagination stops after the first page on which stop matches
// a release; pass nil to fetch the full history.
//
// A missing repository yields a FETCH_FAILED error with status 404 wrapping
// [integrations.ErrNotFound]. An exhausted quota yields *errors.RateLimitedError.
func (c *Client) ListReleases(ctx context.Context, owner, repo string, stop func(Release) bool) ([]Release, error) {
	if err := ValidateRepoRef(owner, repo); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), PerPage)
	rels, err := integrations.Paginate(ctx, c.Client, u, stop)
	if err != nil {
		return nil, fmt.Errorf("list releases %s/%s: %w", owner, repo, err)
	}
	return rels, nil
}
