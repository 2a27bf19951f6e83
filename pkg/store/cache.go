package store

import (
	"context"
	"slices"
	"time"

	"github.com/whatschanged/whatschanged/pkg/observability"
	"github.com/whatschanged/whatschanged/pkg/releases"
	"github.com/whatschanged/whatschanged/pkg/version"
)

const cacheKeyType = "releases"

// ReleaseCache answers "which releases newer than X do we already know" from
// a [Store].
type ReleaseCache struct {
	store Store
	now   func() time.Time
}

// NewReleaseCache wraps s.
func NewReleaseCache(s Store) *ReleaseCache {
	return &ReleaseCache{store: s, now: time.Now}
}

// Lookup returns the cached releases of dep relative to its installed version.
//
// Rows whose version is at least dep.Version qualify. If the only qualifying
// row is the installed version itself, the dependency is up to date and a
// single [releases.WithoutReleaseNote] is returned. Otherwise the strictly
// newer rows are returned newest-first. No qualifying rows yields an empty
// result, which callers treat as a miss. Rows whose version cannot be parsed
// are ignored; an unparsable dep.Version is an error.
func (c *ReleaseCache) Lookup(ctx context.Context, dep releases.Dependency) ([]releases.Release, error) {
	baseline, err := version.Parse(dep.Version)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.RowsFor(ctx, dep.Key())
	if err != nil {
		return nil, err
	}

	type parsedRow struct {
		row Row
		cmp int
		ver string
	}
	var qualifying []parsedRow
	for _, r := range rows {
		v, err := version.Parse(r.Version)
		if err != nil {
			if v, err = version.Parse(r.TagName); err != nil {
				continue
			}
		}
		if d := v.Compare(baseline); d >= 0 {
			qualifying = append(qualifying, parsedRow{row: r, cmp: d, ver: v.String()})
		}
	}

	if len(qualifying) == 0 {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, nil
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)

	newer := slices.DeleteFunc(qualifying, func(p parsedRow) bool { return p.cmp == 0 })
	if len(newer) == 0 {
		return []releases.Release{releases.WithoutReleaseNote{DependencyName: dep.Name}}, nil
	}

	slices.SortStableFunc(newer, func(a, b parsedRow) int {
		if c, err := version.Compare(b.ver, a.ver); err == nil && c != 0 {
			return c
		}
		return b.row.Created.Compare(a.row.Created)
	})

	out := make([]releases.Release, 0, len(newer))
	for _, p := range newer {
		out = append(out, releases.WithReleaseNote{
			DependencyName: dep.Name,
			TagName:        p.row.TagName,
			Version:        p.row.Version,
			URL:            p.row.ReleaseURL,
			CreatedAt:      p.row.Created.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// Insert stores notes in one transaction. Within the batch and against
// existing rows the first-seen (name, tag) pair wins. It returns the number
// of rows actually inserted.
func (c *ReleaseCache) Insert(ctx context.Context, notes []releases.WithReleaseNote) (int, error) {
	type key struct{ name, tag string }
	seen := make(map[key]bool, len(notes))
	rows := make([]Row, 0, len(notes))
	for _, n := range notes {
		k := key{releases.NormalizeName(n.DependencyName), n.TagName}
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, Row{
			Name:       k.name,
			TagName:    n.TagName,
			Version:    n.Version,
			ReleaseURL: n.URL,
			Created:    c.created(n.CreatedAt),
		})
	}
	inserted, err := c.store.InsertRows(ctx, rows)
	if err != nil {
		return 0, err
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, inserted)
	return inserted, nil
}

func (c *ReleaseCache) created(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return c.now().UTC()
}

// HasAny reports whether any release of the named dependency is stored,
// regardless of version.
func (c *ReleaseCache) HasAny(ctx context.Context, name string) (bool, error) {
	return c.store.HasAny(ctx, releases.NormalizeName(name))
}

// Count returns the number of stored releases.
func (c *ReleaseCache) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// Close closes the underlying store.
func (c *ReleaseCache) Close() error {
	return c.store.Close()
}
