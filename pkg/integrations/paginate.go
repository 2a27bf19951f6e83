package integrations

import (
	"context"
	"net/http"
	"slices"

	"github.com/tomnomnom/linkheader"
)

// Paginate walks a paginated JSON listing starting at url and returns all
// items of every fetched page.
//
// Pages are followed through the rel="next" entry of the Link response
// header until none is left. If stop is non-nil and matches any item of a
// page, no further page is requested; the items of that last page are still
// returned in full, so callers filter the result themselves.
//
// Any failure (non-2xx status, rate-limit exhaustion, undecodable body)
// aborts the walk and no partial result is returned.
func Paginate[T any](ctx context.Context, c *Client, url string, stop func(T) bool) ([]T, error) {
	var all []T
	for next := url; next != ""; {
		var page []T
		header, err := c.GetPage(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if stop != nil && slices.ContainsFunc(page, stop) {
			break
		}

		link := NextLink(header)
		if link == next {
			break
		}
		next = link
	}
	return all, nil
}

// NextLink returns the rel="next" URL from the Link headers, or "".
func NextLink(h http.Header) string {
	for _, l := range linkheader.ParseMultiple(h.Values("Link")).FilterByRel("next") {
		return l.URL
	}
	return ""
}
