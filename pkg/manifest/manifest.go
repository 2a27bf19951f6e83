// Package manifest reads the dependencies to check from a package.json file
// or from "name@version" arguments.
package manifest

import (
	"encoding/json"
	"os"
	"slices"
	"strings"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/releases"
)

// Manifest is the subset of package.json the checker needs.
type Manifest struct {
	Name         string
	Version      string
	Dependencies []releases.Dependency // dependencies then devDependencies, each sorted by name
	Skipped      []string              // entries that do not come from the registry
}

type packageFile struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// localProtocols mark dependency specs that are not registry versions.
var localProtocols = []string{"file:", "link:", "workspace:", "portal:", "git:", "git+", "github:", "http:", "https:", "npm:"}

// ParseFile reads and parses the package.json at path.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "read %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return m, nil
}

// Parse parses package.json content. A name listed in both dependencies and
// devDependencies is taken from dependencies.
func Parse(data []byte) (*Manifest, error) {
	var pkg packageFile
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	m := &Manifest{Name: pkg.Name, Version: pkg.Version}
	seen := map[string]bool{}
	for _, section := range []map[string]string{pkg.Dependencies, pkg.DevDependencies} {
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			spec := strings.TrimSpace(section[name])
			if isLocal(spec) {
				m.Skipped = append(m.Skipped, name)
				continue
			}
			m.Dependencies = append(m.Dependencies, releases.Dependency{Name: name, Version: StripRange(spec)})
		}
	}
	return m, nil
}

func isLocal(spec string) bool {
	for _, p := range localProtocols {
		if strings.HasPrefix(spec, p) {
			return true
		}
	}
	return false
}

// StripRange turns a semver range such as "^1.2.3" or ">= 2.0" into the
// version it is anchored on. Only the first comparator of compound ranges
// is kept.
func StripRange(spec string) string {
	s := strings.TrimSpace(spec)
	if i := strings.Index(s, "||"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}
	for {
		trimmed := strings.TrimLeft(s, "^~>=<= ")
		trimmed = strings.TrimPrefix(trimmed, "v")
		if trimmed == s {
			break
		}
		s = trimmed
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}

// ParseArg parses a "name@version" argument. Scoped names keep their
// leading "@": "@scope/pkg@1.2.3".
func ParseArg(arg string) (releases.Dependency, error) {
	arg = strings.TrimSpace(arg)
	at := strings.LastIndexByte(arg, '@')
	if at <= 0 {
		return releases.Dependency{}, errs.New(errs.ErrCodeInvalidInput, "%q: expected name@version", arg)
	}
	dep := releases.Dependency{Name: arg[:at], Version: StripRange(arg[at+1:])}
	if err := errs.ValidateNpmPackageName(dep.Name); err != nil {
		return releases.Dependency{}, err
	}
	if err := errs.ValidateVersion(dep.Version); err != nil {
		return releases.Dependency{}, err
	}
	return dep, nil
}
