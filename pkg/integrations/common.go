package integrations

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

// Rate-limit headers sent by the GitHub API.
const (
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

var (
	// ErrNotFound is returned when a package or resource doesn't exist upstream.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for upstream requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"ssh://git@github.com/", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"http://github.com/", "https://github.com/",
	"https://www.github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, ssh://, git://, git+ and github: prefixes, the bare "owner/repo"
// shorthand npm accepts, and removes .git suffixes and URL fragments.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "git+")
	if rest, ok := strings.CutPrefix(s, "github:"); ok {
		s = "https://github.com/" + rest
	} else if isShorthand(s) {
		s = "https://github.com/" + s
	}
	s = repoURLReplacer.Replace(s)
	if i := strings.IndexAny(s, "#?"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, ".git")
}

// isShorthand reports whether s is npm's "owner/repo" repository shorthand.
func isShorthand(s string) bool {
	if strings.Contains(s, ":") || strings.HasPrefix(s, "@") {
		return false
	}
	owner, repo, ok := strings.Cut(s, "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

// ParseRepoURL extracts owner and repository name from a GitHub repository
// URL in any form [NormalizeRepoURL] understands. ok is false when the URL
// does not point at github.com or lacks either path segment.
func ParseRepoURL(raw string) (owner, repo string, ok bool) {
	u := NormalizeRepoURL(raw)
	rest, found := strings.CutPrefix(u, "https://github.com/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
