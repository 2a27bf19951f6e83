// Package observability lets a binary observe resolutions, release-store
// lookups and outgoing HTTP calls without the libraries depending on a
// metrics or tracing backend.
//
// Libraries emit through the package-level accessors:
//
//	observability.Resolve().OnResolveStart(ctx, len(deps))
//
// and a binary installs its implementations once at startup:
//
//	observability.SetCacheHooks(myCacheHooks{})
//
// Every accessor returns a no-op implementation until something is set.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// ResolveHooks receives events from the release resolver.
type ResolveHooks interface {
	// OnResolveStart records the start of a batch resolution.
	OnResolveStart(ctx context.Context, deps int)

	// OnResolveComplete records the end of a batch resolution, with how many
	// dependencies were answered from the release cache and how many were
	// fetched from the release host.
	OnResolveComplete(ctx context.Context, deps, cached, fetched int, duration time.Duration, err error)
}

// CacheHooks receives release-store and response-cache events. keyType
// names the cache ("releases", "npm:").
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	// OnCacheSet records a write of n rows or bytes.
	OnCacheSet(ctx context.Context, keyType string, n int)
}

// HTTPHooks receives events from the registry and release-host clients.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a transport failure; HTTP error statuses go to OnResponse.
	OnError(ctx context.Context, method, host, path string, err error)
}

type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolveStart(context.Context, int)                                    {}
func (NoopResolveHooks) OnResolveComplete(context.Context, int, int, int, time.Duration, error) {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// registry holds the installed implementation of one hook interface.
type registry[H any] struct {
	v    atomic.Pointer[H]
	noop H
}

func (r *registry[H]) get() H {
	if p := r.v.Load(); p != nil {
		return *p
	}
	return r.noop
}

func (r *registry[H]) set(h H) { r.v.Store(&h) }
func (r *registry[H]) reset()  { r.v.Store(nil) }

var (
	resolveHooks = &registry[ResolveHooks]{noop: NoopResolveHooks{}}
	cacheHooks   = &registry[CacheHooks]{noop: NoopCacheHooks{}}
	httpHooks    = &registry[HTTPHooks]{noop: NoopHTTPHooks{}}
)

// SetResolveHooks installs h. A nil h is ignored.
func SetResolveHooks(h ResolveHooks) {
	if h != nil {
		resolveHooks.set(h)
	}
}

// SetCacheHooks installs h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		cacheHooks.set(h)
	}
}

// SetHTTPHooks installs h. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		httpHooks.set(h)
	}
}

func Resolve() ResolveHooks { return resolveHooks.get() }
func Cache() CacheHooks     { return cacheHooks.get() }
func HTTP() HTTPHooks       { return httpHooks.get() }

// Reset restores the no-op hooks.
func Reset() {
	resolveHooks.reset()
	cacheHooks.reset()
	httpHooks.reset()
}
