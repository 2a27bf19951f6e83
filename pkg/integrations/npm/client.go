package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/whatschanged/whatschanged/pkg/cache"
	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/integrations"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

// SearchPageSize is the largest page the registry search endpoint serves.
const SearchPageSize = 250

// RepositoryInfo is the source repository a package declares.
type RepositoryInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
}

// SearchResult is one package from the registry search endpoint.
type SearchResult struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Repository string `json:"repository,omitempty"`
}

// Client reads package documents from the npm registry.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a registry client. Package documents are cached in c
// for ttl; pass nil to disable caching. An empty baseURL selects
// [DefaultRegistryURL].
func NewClient(c cache.Cache, ttl time.Duration, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &Client{
		Client:  integrations.NewClient(c, "npm:", ttl, map[string]string{"Accept": "application/json"}),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FetchRepository returns the repository declared by the package name.
// If refresh is true, the cached document is bypassed.
//
// A package the registry does not know yields a FETCH_FAILED error wrapping
// [integrations.ErrNotFound]; a document without a usable repository field
// yields SCHEMA_MISMATCH.
func (c *Client) FetchRepository(ctx context.Context, name string, refresh bool) (*RepositoryInfo, error) {
	name = strings.TrimSpace(name)
	if err := errs.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}

	var info RepositoryInfo
	err := c.Cached(ctx, "repo:"+strings.ToLower(name), refresh, &info, func() error {
		return c.fetchRepository(ctx, name, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetchRepository(ctx context.Context, name string, info *RepositoryInfo) error {
	var doc struct {
		Repository json.RawMessage `json:"repository"`
	}
	if err := c.Get(ctx, c.baseURL+"/"+EscapeName(name), &doc); err != nil {
		return fmt.Errorf("npm package %s: %w", name, err)
	}
	typ, u, err := parseRepository(doc.Repository)
	if err != nil {
		return errs.Wrap(errs.ErrCodeSchemaMismatch, err, "npm package %s", name)
	}
	*info = RepositoryInfo{Name: name, Type: typ, URL: u}
	return nil
}

// parseRepository accepts {"type": ..., "url": ...} or a bare URL string.
func parseRepository(raw json.RawMessage) (typ, u string, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", "", fmt.Errorf("repository field missing")
	}
	if err := json.Unmarshal(raw, &u); err == nil {
		if u == "" {
			return "", "", fmt.Errorf("repository is empty")
		}
		return "", u, nil
	}
	var obj struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", "", fmt.Errorf("repository has unexpected shape: %w", err)
	}
	if obj.URL == "" {
		return "", "", fmt.Errorf("repository url missing")
	}
	return obj.Type, obj.URL, nil
}

// Search returns one page of the registry search ranked purely by
// popularity, starting at offset.
func (c *Client) Search(ctx context.Context, offset int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("text", "boost-exact:false")
	q.Set("popularity", "1.0")
	q.Set("quality", "0.0")
	q.Set("maintenance", "0.0")
	q.Set("size", fmt.Sprint(SearchPageSize))
	q.Set("from", fmt.Sprint(offset))

	var resp searchResponse
	err := c.Cached(ctx, "search:"+q.Get("from"), false, &resp, func() error {
		return c.Get(ctx, c.baseURL+"/-/v1/search?"+q.Encode(), &resp)
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		results = append(results, SearchResult{
			Name:       o.Package.Name,
			Version:    o.Package.Version,
			Repository: o.Package.Links.Repository,
		})
	}
	return results, nil
}

// EscapeName escapes a package name for use as a registry path.
// Scoped names keep their leading "@" and encode the separator.
func EscapeName(name string) string {
	if scope, pkg, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(scope, "@") {
		return "@" + url.PathEscape(scope[1:]) + "%2f" + url.PathEscape(pkg)
	}
	return url.PathEscape(name)
}

type searchResponse struct {
	Objects []struct {
		Package struct {
			Name    string `json:"name"`
			Version string `json:"version"`
			Links   struct {
				Repository string `json:"repository"`
			} `json:"links"`
		} `json:"package"`
	} `json:"objects"`
}
