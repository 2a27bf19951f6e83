package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/whatschanged/whatschanged/pkg/cache"
	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/httputil"
	"github.com/whatschanged/whatschanged/pkg/observability"
)

// Client provides shared HTTP functionality for the registry and release-host clients.
// It handles response caching, retry logic, rate-limit detection and common
// request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	headers map[string]string
	retry   func(context.Context, func() error) error
}

// NewClient creates a Client with the given cache backend and default headers.
// Cache keys are prefixed with prefix and stored for ttl.
// Headers are applied to all requests made through this client.
// Pass nil for c to disable caching and nil for headers if none are needed.
func NewClient(c cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		prefix:  prefix,
		ttl:     ttl,
		headers: headers,
		retry:   httputil.RetryWithBackoff,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetRetry replaces the default retry policy (3 attempts, 1s doubling delay).
func (c *Client) SetRetry(attempts int, delay time.Duration) {
	c.retry = func(ctx context.Context, fn func() error) error {
		return httputil.Retry(ctx, attempts, delay, fn)
	}
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	key = c.prefix + key
	if !refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, c.prefix)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, c.prefix)
	}
	if err := c.retry(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, c.prefix, len(data))
		}
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// It uses the client's default headers. Retries are left to [Client.Cached].
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	resp, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, url, v)
}

// GetPage performs one GET of a paginated listing, decodes the body into v
// and returns the response headers so the caller can follow the next link.
// Transient failures are retried; rate-limit exhaustion is not.
func (c *Client) GetPage(ctx context.Context, url string, v any) (http.Header, error) {
	var header http.Header
	err := c.retry(ctx, func() error {
		resp, err := c.doRequest(ctx, url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		header = resp.Header
		return decode(resp.Body, url, v)
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkRateLimit(resp.Header); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if err := checkStatus(resp.StatusCode, resp.Header); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func decode(body io.Reader, url string, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errs.Wrap(errs.ErrCodeSchemaMismatch, err, "decode %s", url)
	}
	return nil
}

// checkRateLimit turns an exhausted quota into a fatal *errors.RateLimitedError.
// Responses without the header (the npm registry) pass through.
func checkRateLimit(h http.Header) error {
	remaining := h.Get(HeaderRateLimitRemaining)
	if remaining == "" || remaining != "0" {
		return nil
	}
	rl := &errs.RateLimitedError{Message: "API quota exhausted"}
	if reset, err := strconv.ParseInt(h.Get(HeaderRateLimitReset), 10, 64); err == nil {
		rl.Reset = time.Unix(reset, 0)
	}
	return rl
}

func checkStatus(code int, h http.Header) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return statusError(code, ErrNotFound)
	case code >= 500:
		return &httputil.RetryableError{Err: statusError(code, ErrNetwork), After: httputil.RetryAfter(h)}
	default:
		return statusError(code, ErrNetwork)
	}
}

func statusError(code int, cause error) error {
	return &errs.Error{
		Code:    errs.ErrCodeFetchFailed,
		Message: fmt.Sprintf("status %d", code),
		Cause:   cause,
		Status:  code,
	}
}
