// Package semver is a from-scratch implementation of the parsing, comparison,
// and range-satisfaction rules that npm's "node-semver" package defines, as
// required by the PM's dependency resolver. It deliberately does not sit on
// top of github.com/Masterminds/semver/v3 (the teacher's own ambient semver
// dependency, reused elsewhere in this module for engines.* checks, see
// internal/manifest) because that library's prerelease and hyphen-range
// handling diverges from npm's in ways this package's tests depend on; see
// DESIGN.md for the full justification.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an immutable parsed SemVer 2.0.0 version.
type Version struct {
	Major, Minor, Patch int
	Prerelease          []string
	Build               []string
	Raw                 string
}

// IsPrerelease reports whether v carries prerelease identifiers.
func (v Version) IsPrerelease() bool {
	return len(v.Prerelease) > 0
}

// String renders the version using its constituent fields (not the raw text).
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Prerelease) > 0 {
		s += "-" + strings.Join(v.Prerelease, ".")
	}
	if len(v.Build) > 0 {
		s += "+" + strings.Join(v.Build, ".")
	}
	return s
}

// InvalidVersionError reports why ParseVersion rejected its input.
type InvalidVersionError struct {
	Input string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q", e.Input)
}

// ParseVersion parses text as a SemVer 2.0.0 version, accepting an optional
// leading "v".
func ParseVersion(text string) (Version, error) {
	raw := text
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "v")
	s = strings.TrimPrefix(s, "V")

	var build string
	hasBuild := false
	if i := strings.IndexByte(s, '+'); i >= 0 {
		build = s[i+1:]
		s = s[:i]
		hasBuild = true
	}

	var prerelease string
	hasPre := false
	if i := strings.IndexByte(s, '-'); i >= 0 {
		prerelease = s[i+1:]
		s = s[:i]
		hasPre = true
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, &InvalidVersionError{Input: raw}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		if !isUnsignedDecimal(p) {
			return Version{}, &InvalidVersionError{Input: raw}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, &InvalidVersionError{Input: raw}
		}
		nums[i] = n
	}

	var preIDs, buildIDs []string
	if hasPre {
		preIDs = strings.Split(prerelease, ".")
		for _, id := range preIDs {
			if id == "" {
				return Version{}, &InvalidVersionError{Input: raw}
			}
		}
	}
	if hasBuild {
		buildIDs = strings.Split(build, ".")
		for _, id := range buildIDs {
			if id == "" {
				return Version{}, &InvalidVersionError{Input: raw}
			}
		}
	}

	return Version{
		Major:      nums[0],
		Minor:      nums[1],
		Patch:      nums[2],
		Prerelease: preIDs,
		Build:      buildIDs,
		Raw:        raw,
	}, nil
}

// isUnsignedDecimal reports whether s is composed only of decimal digits
// with no leading zero (unless s is exactly "0").
func isUnsignedDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	return true
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b,
// following SemVer 2.0.0 precedence. Build metadata never affects ordering.
func Compare(a, b Version) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(a.Patch, b.Patch); c != 0 {
		return c
	}
	return comparePrerelease(a.Prerelease, b.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease implements SemVer's prerelease precedence: a version
// without a prerelease has higher precedence than one with; otherwise
// identifiers are compared pairwise, numeric identifiers compared
// numerically and always lower-precedence than alphanumeric ones.
func comparePrerelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func compareIdentifier(a, b string) int {
	aNum, aIsNum := identifierAsNumber(a)
	bNum, bIsNum := identifierAsNumber(b)
	switch {
	case aIsNum && bIsNum:
		return compareInt(aNum, bNum)
	case aIsNum && !bIsNum:
		return -1
	case !aIsNum && bIsNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// identifierAsNumber reports whether s is composed entirely of digits, and if
// so its numeric value. A leading-zero multi-digit run ("01") is treated as
// non-numeric per strict SemVer, which falls back to lexical comparison.
func identifierAsNumber(s string) (int, bool) {
	if !isUnsignedDecimal(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortVersions sorts versions in descending precedence order.
func SortVersions(versions []Version) {
	// Simple insertion sort; resolver/hoist result sets are small.
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && Compare(versions[j], versions[j-1]) > 0; j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}
