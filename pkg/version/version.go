// Package version turns release tags into comparable semantic versions.
//
// Release tags on source hosts rarely follow one convention: "v1.4.3",
// "1.4.3", "plugin-legacy@5.3.1" and "release-2.0" all occur in the wild.
// [Normalize] extracts the first dotted numeric run from a tag so that all
// of these can be ordered with [Compare], which uses semantic-version
// ordering from github.com/Masterminds/semver/v3.
//
//	v, _ := version.Normalize("plugin-legacy@5.3.1") // "5.3.1"
//	version.Newer("v4.17.21", "4.17.20")             // true
package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/whatschanged/whatschanged/pkg/errors"
)

// ErrInvalidFormat is returned when a tag carries no numeric version run.
var ErrInvalidFormat = errors.New(errors.ErrCodeInvalidVersion, "invalid version format")

var numericRun = regexp.MustCompile(`(?:v\.|v)?([\d.]+)`)

// Normalize extracts a dotted numeric version from an arbitrary tag.
// An optional leading "v" or "v." is dropped, as is anything around the run.
func Normalize(tag string) (string, error) {
	for _, m := range numericRun.FindAllStringSubmatch(tag, -1) {
		if run := strings.Trim(m[1], "."); run != "" {
			return run, nil
		}
	}
	return "", errors.Wrap(errors.ErrCodeInvalidVersion, ErrInvalidFormat, "no version in %q", tag)
}

// Parse normalizes tag and coerces the result into a semantic version.
// Segments past major.minor.patch are dropped.
func Parse(tag string) (*semver.Version, error) {
	run, err := Normalize(tag)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(run, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err, "coerce %q", tag)
	}
	return v, nil
}

// Compare orders two tags by semantic version, returning -1, 0 or 1.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Newer reports whether candidate is strictly newer than baseline.
// Tags that cannot be parsed are never newer.
func Newer(candidate, baseline string) bool {
	c, err := Compare(candidate, baseline)
	return err == nil && c > 0
}

// Older reports whether candidate is strictly older than baseline.
// Tags that cannot be parsed are never older.
func Older(candidate, baseline string) bool {
	c, err := Compare(candidate, baseline)
	return err == nil && c < 0
}

// Desc orders tags newest-first for use with [slices.SortStableFunc].
// Unparsable tags sort after every valid one and compare equal to each other.
func Desc(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return vb.Compare(va)
}
