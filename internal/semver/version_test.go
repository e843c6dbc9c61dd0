package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3, Raw: "1.2.3"}},
		{in: "v1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3, Raw: "v1.2.3"}},
		{in: "1.2.3-rc.1", want: Version{Major: 1, Minor: 2, Patch: 3, Prerelease: []string{"rc", "1"}, Raw: "1.2.3-rc.1"}},
		{in: "1.2.3+build.5", want: Version{Major: 1, Minor: 2, Patch: 3, Build: []string{"build", "5"}, Raw: "1.2.3+build.5"}},
		{in: "1.2.3-rc.1+build.5", want: Version{Major: 1, Minor: 2, Patch: 3, Prerelease: []string{"rc", "1"}, Build: []string{"build", "5"}, Raw: "1.2.3-rc.1+build.5"}},
		{in: "1.2", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
		{in: "1.02.3", wantErr: true},
		{in: "1.2.3-", wantErr: true},
		{in: "not-a-version", wantErr: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseVersion(c.in)
			if c.wantErr {
				require.Error(t, err)
				var invalid *InvalidVersionError
				require.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCompareTotalOrder(t *testing.T) {
	versions := []string{
		"1.0.0-alpha",
		"1.0.0-alpha.1",
		"1.0.0-alpha.beta",
		"1.0.0-beta",
		"1.0.0-beta.2",
		"1.0.0-beta.11",
		"1.0.0-rc.1",
		"1.0.0",
		"1.0.1",
		"1.1.0",
		"2.0.0",
	}
	parsed := make([]Version, len(versions))
	for i, s := range versions {
		v, err := ParseVersion(s)
		require.NoError(t, err)
		parsed[i] = v
	}
	for i := range parsed {
		// reflexivity
		assert.Equal(t, 0, Compare(parsed[i], parsed[i]))
		for j := range parsed {
			if i == j {
				continue
			}
			if i < j {
				assert.Equal(t, -1, Compare(parsed[i], parsed[j]), "%s < %s", versions[i], versions[j])
				// antisymmetry
				assert.Equal(t, 1, Compare(parsed[j], parsed[i]))
			}
		}
	}
}

func TestCompareIgnoresBuildMetadata(t *testing.T) {
	a, err := ParseVersion("1.2.3+build.1")
	require.NoError(t, err)
	b, err := ParseVersion("1.2.3+build.2")
	require.NoError(t, err)
	assert.Equal(t, 0, Compare(a, b))
}

func TestSortVersionsDescending(t *testing.T) {
	in := []string{"1.0.0", "2.0.0", "1.5.0", "0.9.0"}
	versions := make([]Version, len(in))
	for i, s := range in {
		v, err := ParseVersion(s)
		require.NoError(t, err)
		versions[i] = v
	}
	SortVersions(versions)
	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"2.0.0", "1.5.0", "1.0.0", "0.9.0"}, got)
}
