package releases

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ReleaseMap maps a dependency name to its releases, newest first.
type ReleaseMap map[string][]Release

// Group builds a ReleaseMap from a flat list, keeping the relative order
// of releases within each dependency.
func Group(rs []Release) ReleaseMap {
	m := make(ReleaseMap)
	for _, r := range rs {
		m[r.Dependency()] = append(m[r.Dependency()], r)
	}
	return m
}

// Names returns the dependency names in sorted order.
func (m ReleaseMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Updates counts the dependencies that have at least one newer release.
func (m ReleaseMap) Updates() int {
	n := 0
	for _, rs := range m {
		if len(rs) > 0 && rs[0].Kind() == KindWithReleaseNote {
			n++
		}
	}
	return n
}

type taggedRelease struct {
	Kind Kind `json:"kind"`
	WithReleaseNote
}

// MarshalJSON writes each release with its "kind" discriminant.
func (m ReleaseMap) MarshalJSON() ([]byte, error) {
	out := make(map[string][]json.RawMessage, len(m))
	for name, rs := range m {
		items := make([]json.RawMessage, 0, len(rs))
		for _, r := range rs {
			data, err := marshalRelease(r)
			if err != nil {
				return nil, err
			}
			items = append(items, data)
		}
		out[name] = items
	}
	return json.Marshal(out)
}

func marshalRelease(r Release) ([]byte, error) {
	var v any
	Visit(r, Visitor{
		WithReleaseNote: func(n WithReleaseNote) {
			v = taggedRelease{Kind: n.Kind(), WithReleaseNote: n}
		},
		WithoutReleaseNote: func(n WithoutReleaseNote) {
			v = struct {
				Kind Kind `json:"kind"`
				WithoutReleaseNote
			}{n.Kind(), n}
		},
		PackageNotFound: func(n PackageNotFound) {
			v = struct {
				Kind Kind `json:"kind"`
				PackageNotFound
			}{n.Kind(), n}
		},
	})
	return json.Marshal(v)
}

// UnmarshalJSON decodes the tagged-variant form written by MarshalJSON.
func (m *ReleaseMap) UnmarshalJSON(data []byte) error {
	var raw map[string][]taggedRelease
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ReleaseMap, len(raw))
	for name, items := range raw {
		rs := make([]Release, 0, len(items))
		for _, it := range items {
			switch it.Kind {
			case KindWithReleaseNote:
				rs = append(rs, it.WithReleaseNote)
			case KindWithoutReleaseNote:
				rs = append(rs, WithoutReleaseNote{DependencyName: it.DependencyName})
			case KindPackageNotFound:
				rs = append(rs, PackageNotFound{DependencyName: it.DependencyName})
			default:
				return fmt.Errorf("release for %s: unknown kind %q", name, it.Kind)
			}
		}
		out[name] = rs
	}
	*m = out
	return nil
}
