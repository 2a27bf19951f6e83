// Package cache provides byte-level storage backends for HTTP response caching.
//
// The npm registry client caches repository lookups through a [Cache] so
// that repeated resolutions of the same dependency do not hit the registry
// again. Three backends are provided:
//   - [FileCache]: one file per entry, for the CLI
//   - [RedisCache]: shared storage for multiple `serve` instances
//   - [NullCache]: caching disabled (--no-cache, tests)
//
// Keys are opaque strings; callers namespace them (e.g. "npm:lodash").
package cache

import (
	"context"
	"time"
)

// TTLRegistry is the default lifetime of a cached registry response.
const TTLRegistry = 24 * time.Hour

// Cache stores opaque byte values with an optional time-to-live.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}
