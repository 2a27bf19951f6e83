// Package httputil retries transient HTTP failures for the registry and
// release-host clients.
//
// Only errors wrapped in [RetryableError] are retried: transport failures and
// 5xx responses. A rate-limit response is never retryable; the release host
// reports an exhausted quota and the caller aborts instead.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return client.Get(ctx, url, &v)
//	})
//
// A server may shorten or lengthen the next wait with Retry-After, see
// [RetryAfter]. [Backoff.MaxDelay] caps every wait.
package httputil
