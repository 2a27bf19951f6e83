// Package releases defines the data model shared by the resolver, the
// release cache and the outer CLI and HTTP surfaces.
//
// # Release kinds
//
// A [Release] is one of three fixed shapes, identified by [Kind]:
//
//   - [WithReleaseNote]: a concrete release newer than the installed version
//   - [WithoutReleaseNote]: the repository was found but nothing is newer
//   - [PackageNotFound]: the repository could not be located
//
// The interface is sealed; consumers switch over the concrete types with
// [Visit], which panics on an unknown kind so a new kind cannot slip past a
// consumer unnoticed.
//
// # JSON
//
// A [ReleaseMap] encodes as one object keyed by dependency name whose values
// are arrays of objects carrying a "kind" discriminant:
//
//	{"lodash": [{"kind": "withReleaseNote", "tagName": "4.17.21", ...}]}
package releases

import (
	"strings"
)

// Dependency is a package name plus the version currently installed.
// Version may still be non-semver ("latest", a git ref).
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns the normalized name used for cache rows.
func (d Dependency) Key() string { return NormalizeName(d.Name) }

// NormalizeName lower-cases and trims a dependency name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RepositoryRef locates a dependency's source repository on the release host.
// It lives for the duration of a single resolution and is never persisted.
type RepositoryRef struct {
	Owner           string
	Repo            string
	DependencyName  string
	BaselineVersion string
}

// FullName returns "owner/repo".
func (r RepositoryRef) FullName() string { return r.Owner + "/" + r.Repo }

// Kind discriminates the release variants.
type Kind string

const (
	KindWithReleaseNote    Kind = "withReleaseNote"
	KindWithoutReleaseNote Kind = "withoutReleaseNote"
	KindPackageNotFound    Kind = "packageNotFound"
)

// Release is a tagged variant; see the package documentation.
type Release interface {
	Kind() Kind
	Dependency() string
	release()
}

// WithReleaseNote is a concrete release newer than the baseline.
type WithReleaseNote struct {
	DependencyName string  `json:"dependencyName"`
	TagName        string  `json:"tagName"`
	Version        string  `json:"version"`
	URL            string  `json:"url"`
	Name           *string `json:"name"`
	Body           *string `json:"body"`
	CreatedAt      string  `json:"createdAt"`
}

// WithoutReleaseNote marks a dependency that is already up to date.
type WithoutReleaseNote struct {
	DependencyName string `json:"dependencyName"`
}

// PackageNotFound marks a dependency whose repository could not be located.
type PackageNotFound struct {
	DependencyName string `json:"dependencyName"`
}

func (WithReleaseNote) Kind() Kind    { return KindWithReleaseNote }
func (WithoutReleaseNote) Kind() Kind { return KindWithoutReleaseNote }
func (PackageNotFound) Kind() Kind    { return KindPackageNotFound }

func (r WithReleaseNote) Dependency() string    { return r.DependencyName }
func (r WithoutReleaseNote) Dependency() string { return r.DependencyName }
func (r PackageNotFound) Dependency() string    { return r.DependencyName }

func (WithReleaseNote) release()    {}
func (WithoutReleaseNote) release() {}
func (PackageNotFound) release()    {}

// Visitor holds one callback per release kind. Nil callbacks are skipped.
type Visitor struct {
	WithReleaseNote    func(WithReleaseNote)
	WithoutReleaseNote func(WithoutReleaseNote)
	PackageNotFound    func(PackageNotFound)
}

// Visit dispatches r to the matching callback of v.
func Visit(r Release, v Visitor) {
	switch r := r.(type) {
	case WithReleaseNote:
		if v.WithReleaseNote != nil {
			v.WithReleaseNote(r)
		}
	case WithoutReleaseNote:
		if v.WithoutReleaseNote != nil {
			v.WithoutReleaseNote(r)
		}
	case PackageNotFound:
		if v.PackageNotFound != nil {
			v.PackageNotFound(r)
		}
	default:
		panic("releases: unknown release kind " + string(r.Kind()))
	}
}

// Notes returns the WithReleaseNote entries of rs, in order.
func Notes(rs []Release) []WithReleaseNote {
	var out []WithReleaseNote
	for _, r := range rs {
		Visit(r, Visitor{WithReleaseNote: func(n WithReleaseNote) { out = append(out, n) }})
	}
	return out
}
