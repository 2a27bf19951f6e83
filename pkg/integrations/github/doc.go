// Package github provides a client for the GitHub releases API.
//
// # Usage
//
//	client := github.NewClient(os.Getenv("GITHUB_ACCESS_TOKEN"), "")
//	rels, err := client.ListReleases(ctx, "vitejs", "vite", func(r github.Release) bool {
//	    return version.Older(r.TagName, "5.3.0")
//	})
//
// [Client.ListReleases] follows the Link header page by page and stops as
// soon as a page contains a release matching the predicate, so checking a
// recent version costs one or two requests regardless of history length.
//
// # Authentication
//
// Unauthenticated requests share a small hourly quota. When the quota is
// exhausted the API answers with X-RateLimit-Remaining: 0 and the client
// returns *errors.RateLimitedError carrying the reset time.
//
// # Validation
//
// [ValidateOwner], [ValidateRepo] and [ValidateRepoRef] reject names that
// cannot exist on GitHub before any request is made.
package github
