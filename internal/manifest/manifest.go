// Package manifest reads and writes a project's package.json, adapted from
// the teacher's internal/fs.PackageJSON to the PM's install/uninstall
// read-modify-write cycle.
package manifest

import (
	"encoding/json"
	"fmt"
	"runtime"

	mastersemver "github.com/Masterminds/semver/v3"
)

// Manifest is the typed view of a project's package.json. Unrecognized
// fields are preserved via RawJSON so a round trip never drops data the PM
// doesn't understand.
type Manifest struct {
	Name                 string            `json:"name,omitempty"`
	Version              string            `json:"version,omitempty"`
	Private              bool              `json:"private,omitempty"`
	Scripts              map[string]string `json:"scripts,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	PackageManager       string            `json:"packageManager,omitempty"`
	Engines              map[string]string `json:"engines,omitempty"`

	// RawJSON is the exact JSON object the manifest was parsed from,
	// including fields this struct doesn't model. Struct fields win over
	// raw fields when marshalling.
	RawJSON map[string]interface{} `json:"-"`
}

// Default synthesizes a manifest for a project that has none yet, per
// orchestrator Install step 1.
func Default(name string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
	}
}

// Parse decodes data into a Manifest, failing with INVALID_PACKAGE_JSON
// semantics left to the caller (see pmerr).
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	m.RawJSON = raw
	return m, nil
}

// Encode serializes m back to package.json bytes, merging struct fields over
// any raw passthrough fields, pretty-printed with 2-space indentation to
// match the ecosystem convention `npm` itself uses.
func (m *Manifest) Encode() ([]byte, error) {
	structured, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(structured, &out); err != nil {
		return nil, err
	}
	// Keys the struct models are never taken from RawJSON, so a field the
	// struct has emptied (and omitempty dropped) stays removed.
	modeled := map[string]bool{
		"name": true, "version": true, "private": true, "scripts": true,
		"dependencies": true, "devDependencies": true, "optionalDependencies": true,
		"peerDependencies": true, "packageManager": true, "engines": true,
	}
	for k, v := range m.RawJSON {
		if _, known := out[k]; !known && !modeled[k] {
			out[k] = v
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// AddDependency records name@range under dependencies or devDependencies,
// per orchestrator Install step 2 (`saveDev` option).
func (m *Manifest) AddDependency(name, rangeText string, dev bool) {
	if dev {
		if m.DevDependencies == nil {
			m.DevDependencies = map[string]string{}
		}
		m.DevDependencies[name] = rangeText
		return
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	m.Dependencies[name] = rangeText
}

// RemoveDependency deletes name from both dependency maps, per Uninstall.
func (m *Manifest) RemoveDependency(name string) {
	delete(m.Dependencies, name)
	delete(m.DevDependencies, name)
}

// AllDependencies returns the dependency set to resolve: the manifest's
// `dependencies`, plus `devDependencies` unless production is requested.
// Matches §4.8 step 3 and the open question in §9 ("options.dev is accepted
// by the resolver but not consumed by it; dev/prod selection happens in the
// orchestrator").
func (m *Manifest) AllDependencies(production bool) map[string]string {
	out := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, r := range m.Dependencies {
		out[name] = r
	}
	if !production {
		for name, r := range m.DevDependencies {
			out[name] = r
		}
	}
	return out
}

// CheckEngines validates the manifest's engines.node declaration (if any)
// against the running Go toolchain's reported Node-compatible runtime
// version string, using github.com/Masterminds/semver/v3 — a real ecosystem
// constraint-checker wired in for this ambient manifest-compatibility
// concern, distinct from and not a substitute for the PM's own hand-rolled
// C1 SemVer engine (internal/semver), which must match npm's exact range
// semantics rather than a generic library's.
func (m *Manifest) CheckEngines(nodeVersion string) error {
	constraintText, ok := m.Engines["node"]
	if !ok || constraintText == "" {
		return nil
	}
	constraint, err := mastersemver.NewConstraint(constraintText)
	if err != nil {
		return fmt.Errorf("invalid engines.node constraint %q: %w", constraintText, err)
	}
	v, err := mastersemver.NewVersion(nodeVersion)
	if err != nil {
		return fmt.Errorf("invalid runtime version %q: %w", nodeVersion, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("package %s requires node %s, running %s (%s/%s)", m.Name, constraintText, nodeVersion, runtime.GOOS, runtime.GOARCH)
	}
	return nil
}

// ParseSpecifier splits a CLI-provided `<name>@<rangeOrTag>` argument,
// defaulting the range to "latest" when omitted, per §4.8 step 2. Scoped
// package names (`@scope/name`) are handled by only splitting on the last
// "@".
func ParseSpecifier(spec string) (name, rangeOrTag string) {
	if spec == "" {
		return "", "latest"
	}
	// A leading "@" belongs to a scope, not a version separator.
	scopePrefix := ""
	rest := spec
	if spec[0] == '@' {
		scopePrefix = "@"
		rest = spec[1:]
	}
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '@' {
			return scopePrefix + rest[:i], rest[i+1:]
		}
	}
	return spec, "latest"
}
