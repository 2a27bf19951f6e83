package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/integrations"
)

func testClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c := NewClient(token, baseURL)
	c.SetRetry(1, time.Millisecond)
	return c
}

func str(s string) *string { return &s }

func TestListReleasesRequest(t *testing.T) {
	var gotAuth, gotAccept, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/releases" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Release{
			{TagName: "v1.2.0", Name: str("1.2.0"), Body: nil, CreatedAt: "2024-03-01T00:00:00Z", HTMLURL: "https://github.com/owner/repo/releases/tag/v1.2.0"},
		})
	}))
	defer server.Close()

	rels, err := testClient(t, server.URL, "secret").ListReleases(context.Background(), "owner", "repo", nil)
	if err != nil {
		t.Fatalf("ListReleases() error: %v", err)
	}
	if len(rels) != 1 || rels[0].TagName != "v1.2.0" {
		t.Fatalf("ListReleases() = %+v", rels)
	}
	if rels[0].Body != nil {
		t.Errorf("null body decoded as %q", *rels[0].Body)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotQuery != "per_page=100" {
		t.Errorf("query = %q, want per_page=100", gotQuery)
	}
}

func TestListReleasesNoTokenNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("unauthenticated client sent Authorization header")
		}
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL, "").ListReleases(context.Background(), "owner", "repo", nil); err != nil {
		t.Fatalf("ListReleases() error: %v", err)
	}
}

func TestListReleasesStopsEarly(t *testing.T) {
	var requested []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		next := map[string]string{"": "2", "2": "3"}[page]
		if next != "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/repo/releases?per_page=100&page=%s>; rel="next"`, server.URL, next))
		}
		switch page {
		case "":
			json.NewEncoder(w).Encode([]Release{{TagName: "v3.0.0"}, {TagName: "v2.1.0"}})
		case "2":
			json.NewEncoder(w).Encode([]Release{{TagName: "v2.0.0"}, {TagName: "v1.0.0"}})
		default:
			json.NewEncoder(w).Encode([]Release{{TagName: "v0.1.0"}})
		}
	}))
	defer server.Close()

	rels, err := testClient(t, server.URL, "").ListReleases(context.Background(), "owner", "repo",
		func(r Release) bool { return r.TagName == "v1.0.0" })
	if err != nil {
		t.Fatalf("ListReleases() error: %v", err)
	}
	if len(rels) != 4 {
		t.Errorf("got %d releases, want 4", len(rels))
	}
	if strings.Join(requested, ",") != ",2" {
		t.Errorf("requested pages %q, want first and second only", requested)
	}
}

func TestListReleasesNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := testClient(t, server.URL, "").ListReleases(context.Background(), "owner", "gone", nil)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if errs.StatusOf(err) != http.StatusNotFound {
		t.Errorf("StatusOf() = %d, want 404", errs.StatusOf(err))
	}
}

func TestListReleasesRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL, "").ListReleases(context.Background(), "owner", "repo", nil)
	if !errs.Is(err, errs.ErrCodeRateLimited) {
		t.Errorf("error = %v, want RATE_LIMITED", err)
	}
}

func TestListReleasesInvalidRef(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1", "")
	if _, err := c.ListReleases(context.Background(), "-bad", "repo", nil); err == nil {
		t.Error("expected validation error")
	}
}

func TestReleasePublished(t *testing.T) {
	tests := []struct {
		rel  Release
		want bool
	}{
		{Release{TagName: "v1"}, true},
		{Release{TagName: "v1", Draft: true}, false},
		{Release{TagName: "v1", Prerelease: true}, false},
	}
	for _, tt := range tests {
		if got := tt.rel.Published(); got != tt.want {
			t.Errorf("%+v.Published() = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestValidateRepoRef(t *testing.T) {
	tests := []struct {
		owner, repo string
		wantErr     bool
	}{
		{"vitejs", "vite", false},
		{"my-org", "repo.js", false},
		{"", "repo", true},
		{"owner", "", true},
		{"-owner", "repo", true},
		{"owner", "re/po", true},
		{"owner", "..", true},
		{strings.Repeat("a", 40), "repo", true},
	}
	for _, tt := range tests {
		err := ValidateRepoRef(tt.owner, tt.repo)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRepoRef(%q, %q) error = %v, wantErr %v", tt.owner, tt.repo, err, tt.wantErr)
		}
	}
}
