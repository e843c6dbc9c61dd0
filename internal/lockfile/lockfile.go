// Package lockfile implements the lockfile codec (C7): parsing and
// generating package-lock.json in v3 shape, with a fallback read path for
// the legacy nested `dependencies` format. Adapted directly from the
// teacher's internal/lockfile.NpmLockfile/NpmPackage/NpmDependency types and
// its possibleNpmDeps/npmPathParent ancestor-lookup helpers.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"webpm/internal/pmerr"
)

// Lockfile is the decoded package-lock.json, v3 shape, per §3.
type Lockfile struct {
	Name            string                `json:"name"`
	Version         string                `json:"version"`
	LockfileVersion int                   `json:"lockfileVersion"`
	Requires        bool                  `json:"requires,omitempty"`
	Packages        map[string]Package    `json:"packages,omitempty"`
	Dependencies    map[string]Dependency `json:"dependencies,omitempty"`
}

// Package is one entry of the v3 `packages` map, keyed by
// node_modules-relative path ("" denotes the project root).
type Package struct {
	Name                 string            `json:"name,omitempty"`
	Version              string            `json:"version,omitempty"`
	Resolved             string            `json:"resolved,omitempty"`
	Integrity            string            `json:"integrity,omitempty"`
	Dev                  bool              `json:"dev,omitempty"`
	Optional             bool              `json:"optional,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Bin                  map[string]string `json:"bin,omitempty"`
}

// Dependency is the legacy (lockfileVersion <= 1) nested `dependencies`
// entry shape, read for S5 backward-compatibility but never generated.
type Dependency struct {
	Version      string                `json:"version"`
	Resolved     string                `json:"resolved,omitempty"`
	Integrity    string                `json:"integrity,omitempty"`
	Dev          bool                  `json:"dev,omitempty"`
	Optional     bool                  `json:"optional,omitempty"`
	Requires     map[string]string     `json:"requires,omitempty"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty"`
}

// CurrentVersion is the lockfileVersion this codec generates.
const CurrentVersion = 3

// Parse decodes package-lock.json content. A v3 (or v2, which is a superset
// shape) lockfile is read directly from `packages`; a legacy lockfile
// (`lockfileVersion <= 1`, or any lockfile with `dependencies` but no
// `packages`) is normalized into the same v3-shaped Packages map, per S5.
//
// Missing or non-object input yields an empty lockfile plus a warning in
// non-strict mode, and a CodeInvalidPackageJSON failure in strict mode. Any
// packages entry missing its (required) version defaults to "0.0.0" with a
// warning, per §4.7.
func Parse(content []byte, strict bool) (*Lockfile, []string, error) {
	var warnings []string

	var probe interface{}
	isObject := false
	if len(bytes.TrimSpace(content)) > 0 {
		if err := json.Unmarshal(content, &probe); err == nil {
			_, isObject = probe.(map[string]interface{})
		}
	}
	if !isObject {
		if strict {
			return nil, nil, pmerr.New(pmerr.CodeInvalidPackageJSON, "package-lock.json is missing or not a JSON object")
		}
		warnings = append(warnings, "package-lock.json is missing or not a JSON object; using an empty lockfile")
		return &Lockfile{LockfileVersion: CurrentVersion, Packages: map[string]Package{}}, warnings, nil
	}

	var lf Lockfile
	if err := json.Unmarshal(content, &lf); err != nil {
		return nil, nil, pmerr.New(pmerr.CodeInvalidPackageJSON, "package-lock.json is not valid JSON: "+err.Error())
	}

	legacy := lf.LockfileVersion <= 1 || (len(lf.Dependencies) > 0 && len(lf.Packages) == 0)
	if legacy {
		packages := map[string]Package{}
		if lf.Packages != nil {
			for k, v := range lf.Packages {
				packages[k] = v
			}
		}
		flattenLegacyDependencies("node_modules", lf.Dependencies, packages)
		lf.Packages = packages
		lf.LockfileVersion = CurrentVersion
		lf.Dependencies = nil
	}

	for path, pkg := range lf.Packages {
		if pkg.Version == "" {
			pkg.Version = "0.0.0"
			lf.Packages[path] = pkg
			label := path
			if label == "" {
				label = "<root>"
			}
			warnings = append(warnings, fmt.Sprintf("package %q missing version, defaulting to 0.0.0", label))
		}
	}

	return &lf, warnings, nil
}

// flattenLegacyDependencies walks the legacy nested `dependencies` tree and
// emits one v3 `packages` entry per node at its nested node_modules path,
// mirroring how npm itself materializes nested legacy deps on disk.
func flattenLegacyDependencies(base string, deps map[string]Dependency, out map[string]Package) {
	for name, dep := range deps {
		path := base + "/" + name
		out[path] = Package{
			Version:      dep.Version,
			Resolved:     dep.Resolved,
			Integrity:    dep.Integrity,
			Dev:          dep.Dev,
			Optional:     dep.Optional,
			Dependencies: dep.Requires,
		}
		if len(dep.Dependencies) > 0 {
			flattenLegacyDependencies(path+"/node_modules", dep.Dependencies, out)
		}
	}
}

// Encode serializes lf back to package-lock.json bytes, 2-space indented to
// match npm's own formatting.
func Encode(lf *Lockfile) ([]byte, error) {
	if lf.LockfileVersion == 0 {
		lf.LockfileVersion = CurrentVersion
	}
	return json.MarshalIndent(lf, "", "  ")
}

// HasPackage reports whether path exists in the packages map.
func (l *Lockfile) HasPackage(path string) bool {
	_, ok := l.Packages[path]
	return ok
}

// GetPackageVersions returns a map of hoisted path → version for every
// package whose base name matches name, across every depth it was hoisted
// to.
func (l *Lockfile) GetPackageVersions(name string) map[string]string {
	suffix := "node_modules/" + name
	out := map[string]string{}
	for path, pkg := range l.Packages {
		if path == suffix || strings.HasSuffix(path, "/"+suffix) {
			out[path] = pkg.Version
		}
	}
	return out
}

// ExtractFlat returns the full packages map as a path→Package mapping — the
// FlatDependency view §3 describes, already produced by construction since
// the lockfile's packages map IS that flat view.
func (l *Lockfile) ExtractFlat() map[string]Package {
	out := make(map[string]Package, len(l.Packages))
	for k, v := range l.Packages {
		out[k] = v
	}
	return out
}

// MergeLockfiles combines base with overlay, overlay entries winning on key
// collision; lockfileVersion is the larger of the two. The install path does
// not call it: Install always writes a lockfile built from a fresh resolve.
func MergeLockfiles(base, overlay *Lockfile) *Lockfile {
	version := base.LockfileVersion
	if overlay.LockfileVersion > version {
		version = overlay.LockfileVersion
	}
	merged := &Lockfile{
		Name:            base.Name,
		Version:         base.Version,
		LockfileVersion: version,
		Requires:        base.Requires || overlay.Requires,
		Packages:        make(map[string]Package, len(base.Packages)+len(overlay.Packages)),
	}
	for k, v := range base.Packages {
		merged.Packages[k] = v
	}
	for k, v := range overlay.Packages {
		merged.Packages[k] = v
	}
	return merged
}

// possibleNpmDeps returns, in nearest-ancestor-first order, every
// node_modules path a dependency named dep could resolve to from a package
// at lockfile key key — the hoisting lookup rule from §3's Lockfile
// invariant, adapted verbatim from the teacher's helper of the same name.
func possibleNpmDeps(key, dep string) []string {
	possible := []string{fmt.Sprintf("%s/node_modules/%s", key, dep)}

	curr := key
	for curr != "" {
		next := npmPathParent(curr)
		possible = append(possible, fmt.Sprintf("%snode_modules/%s", next, dep))
		curr = next
	}
	return possible
}

// npmPathParent strips the last "node_modules/<segment>" component from key,
// walking one nesting level up toward the project root.
func npmPathParent(key string) string {
	if idx := strings.LastIndex(key, "node_modules/"); idx != -1 {
		return key[:idx]
	}
	return ""
}

// ResolveDependency finds the nearest-ancestor lockfile entry that satisfies
// a dependency named dep requested from the package at key, per the
// ancestor-lookup invariant in §3.
func (l *Lockfile) ResolveDependency(key, dep string) (path string, pkg Package, found bool) {
	for _, candidate := range possibleNpmDeps(key, dep) {
		if entry, ok := l.Packages[candidate]; ok {
			return candidate, entry, true
		}
	}
	return "", Package{}, false
}
