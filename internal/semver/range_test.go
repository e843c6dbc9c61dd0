package semver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	require.NoError(t, err)
	return v
}

func parseAll(t *testing.T, in []string) []Version {
	t.Helper()
	out := make([]Version, len(in))
	for i, s := range in {
		out[i] = mustParse(t, s)
	}
	return out
}

// S1 — caret resolution.
func TestScenarioS1CaretResolution(t *testing.T) {
	versions := parseAll(t, []string{"1.0.0", "1.2.3", "1.2.9", "2.0.0-rc.1", "2.0.0"})
	r := ParseRange("^1.2.0")

	got, ok := MaxSatisfying(versions, r)
	require.True(t, ok)
	require.Equal(t, "1.2.9", got.String())

	require.False(t, Satisfies(mustParse(t, "2.0.0-rc.1"), r), "prerelease of an unrelated anchor must not satisfy")
	require.False(t, Satisfies(mustParse(t, "2.0.0"), r), "caret excludes the next major")
}

// S2 — hyphen range combined with an OR'd exact version.
func TestScenarioS2HyphenAndOr(t *testing.T) {
	versions := parseAll(t, []string{"0.9.0", "1.0.0", "1.5.0", "2.0.0", "3.0.0"})
	r := ParseRange("1.0.0 - 2.0.0 || 3.0.0")

	var satisfying []string
	for _, v := range versions {
		if Satisfies(v, r) {
			satisfying = append(satisfying, v.String())
		}
	}
	require.Equal(t, []string{"1.0.0", "1.5.0", "2.0.0", "3.0.0"}, satisfying)

	got, ok := MaxSatisfying(versions, r)
	require.True(t, ok)
	require.Equal(t, "3.0.0", got.String())
}

func TestParseRangeAnyVariants(t *testing.T) {
	for _, s := range []string{"", "*", "x", "X"} {
		require.Equal(t, KindAny, ParseRange(s).Kind, "input %q", s)
	}
}

func TestParseRangeFallsBackToTag(t *testing.T) {
	r := ParseRange("latest")
	require.Equal(t, KindTag, r.Kind)
	require.Equal(t, "latest", r.Tag)
	require.False(t, Satisfies(mustParse(t, "1.0.0"), r), "a bare Range never satisfies a tag")
}

func TestTildeRange(t *testing.T) {
	r := ParseRange("~1.2.3")
	require.True(t, Satisfies(mustParse(t, "1.2.3"), r))
	require.True(t, Satisfies(mustParse(t, "1.2.9"), r))
	require.False(t, Satisfies(mustParse(t, "1.3.0"), r))
	require.False(t, Satisfies(mustParse(t, "1.2.2"), r))
}

func TestCaretZeroMajorZeroMinor(t *testing.T) {
	r := ParseRange("^0.0.3")
	require.True(t, Satisfies(mustParse(t, "0.0.3"), r))
	require.False(t, Satisfies(mustParse(t, "0.0.4"), r))
	require.False(t, Satisfies(mustParse(t, "0.1.0"), r))
}

func TestCaretZeroMajorNonzeroMinor(t *testing.T) {
	r := ParseRange("^0.2.3")
	require.True(t, Satisfies(mustParse(t, "0.2.3"), r))
	require.True(t, Satisfies(mustParse(t, "0.2.9"), r))
	require.False(t, Satisfies(mustParse(t, "0.3.0"), r))
}

func TestComparatorOperators(t *testing.T) {
	require.True(t, Satisfies(mustParse(t, "1.2.3"), ParseRange(">=1.2.3")))
	require.False(t, Satisfies(mustParse(t, "1.2.2"), ParseRange(">=1.2.3")))
	require.True(t, Satisfies(mustParse(t, "1.2.4"), ParseRange(">1.2.3")))
	require.True(t, Satisfies(mustParse(t, "1.2.3"), ParseRange("<=1.2.3")))
	require.True(t, Satisfies(mustParse(t, "1.2.2"), ParseRange("<1.2.3")))
	require.True(t, Satisfies(mustParse(t, "1.2.3"), ParseRange("=1.2.3")))
}

// Property 2: range satisfaction closure.
func TestPropertySatisfactionClosure(t *testing.T) {
	versions := parseAll(t, []string{"1.0.0", "1.2.0", "1.2.3", "1.9.9", "2.0.0"})
	r := ParseRange("^1.0.0")
	for _, v := range versions {
		if !Satisfies(v, r) {
			continue
		}
		best, ok := MaxSatisfying(versions, r)
		require.True(t, ok)
		require.GreaterOrEqual(t, Compare(best, v), 0)
	}
}

func TestMinSatisfying(t *testing.T) {
	versions := parseAll(t, []string{"1.0.0", "1.2.3", "1.2.9", "1.9.9"})
	r := ParseRange("^1.2.0")
	got, ok := MinSatisfying(versions, r)
	require.True(t, ok)
	require.Equal(t, "1.2.3", got.String())
}

func TestIsTag(t *testing.T) {
	require.True(t, IsTag(ParseRange("next")))
	require.False(t, IsTag(ParseRange("^1.0.0")))
}
