// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// The registry is only consulted to find out where a package's source
// lives. [Client.FetchRepository] reads the package document
// (https://registry.npmjs.org/{name}) and returns its "repository" field,
// which may be an object ({"type": "git", "url": "..."}) or a bare string.
//
//	client := npm.NewClient(fileCache, cache.TTLRegistry, "")
//	info, err := client.FetchRepository(ctx, "@vitejs/plugin-legacy", false)
//	owner, repo, ok := integrations.ParseRepoURL(info.URL)
//
// # Search
//
// [Client.Search] pages through the registry search endpoint ordered by
// popularity. The seed command uses it to pre-populate the release store
// with the most depended-upon packages.
//
// # Caching
//
// Package documents are cached through the shared response cache under
// "npm:repo:{name}". Pass refresh=true to bypass it.
package npm
