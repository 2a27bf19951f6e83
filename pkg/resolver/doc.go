// Package resolver answers "what changed since the version I have" for a
// batch of npm dependencies.
//
// # Pipeline
//
// [Resolver.Resolve] runs each dependency through up to three stages:
//
//  1. Cache: the release store is asked for releases at or above the
//     installed version. A non-empty answer is final.
//  2. Locate: the npm registry names the GitHub repository of every
//     dependency the store could not answer.
//  3. Fetch: the repository's releases are listed page by page, newest
//     first, stopping after the first page that reaches back past the
//     installed version.
//
// Stages 2 and 3 fan out with a bounded number of concurrent requests.
// Every fetched release is written back to the store so the next query for
// the same dependency stays local.
//
// # Failure Policy
//
// A dependency that cannot be located, whose repository does not exist, or
// whose installed version is not a version at all, becomes a single
// packageNotFound entry. An exhausted GitHub quota or any other release
// host failure aborts the batch: Resolve returns a nil map and the error.
// Failing to write the store is logged and otherwise ignored.
//
// # Seeding
//
// [Resolver.Seed] fetches full release histories for known repositories
// and stores them without producing a report.
package resolver
