// Package integrations provides HTTP clients for the package registry and the
// release host.
//
// # Overview
//
// Each upstream has its own subpackage:
//
//   - [npm]: the npm registry, used to locate a dependency's repository
//   - [github]: the GitHub REST API, used to list releases
//
// # Shared Infrastructure
//
// The [Client] type provides shared HTTP functionality used by both:
//   - Default headers (Accept, Authorization)
//   - Response caching via a [cache.Cache] backend
//   - Retry with exponential backoff for transient failures
//   - Rate-limit detection through the X-RateLimit-Remaining header
//
// # Pagination
//
// [Paginate] walks a listing endpoint page by page, following the
// rel="next" Link header iteratively. An optional stop predicate ends the
// walk after the first page containing a matching item, which lets the
// release client fetch "releases newer than X" without walking the whole
// history.
//
// # Errors
//
// Upstream failures are reported with codes from [errors]:
//   - FETCH_FAILED for non-2xx responses (wrapping [ErrNotFound] on 404)
//   - RATE_LIMITED when the quota is exhausted; this is never retried
//   - SCHEMA_MISMATCH when a body cannot be decoded
//
// [npm]: github.com/whatschanged/whatschanged/pkg/integrations/npm
// [github]: github.com/whatschanged/whatschanged/pkg/integrations/github
// [cache.Cache]: github.com/whatschanged/whatschanged/pkg/cache.Cache
// [errors]: github.com/whatschanged/whatschanged/pkg/errors
package integrations
