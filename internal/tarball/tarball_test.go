package tarball

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"

	"webpm/internal/pmerr"
)

type tarEntry struct {
	name string
	typ  byte
	body string
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		typ := e.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: typ,
			Size:     int64(len(e.body)),
			Mode:     0o644,
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typ == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// S6 — tarball extraction.
func TestScenarioS6Extraction(t *testing.T) {
	data := buildTarGz(t, []tarEntry{
		{name: "package/", typ: tar.TypeDir},
		{name: "package/package.json", body: `{"name":"left-pad","version":"1.3.0"}`},
		{name: "package/index.js", body: "module.exports = leftPad;"},
		{name: "package/test/index.js", typ: tar.TypeReg, body: "// tests"},
	})

	extracted, err := Extract(data)
	require.NoError(t, err)
	require.Equal(t, "left-pad", extracted.Manifest.Name)
	require.Equal(t, "1.3.0", extracted.Manifest.Version)
	require.Contains(t, extracted.Files, "index.js")
	require.Contains(t, extracted.Files, "package.json")
	require.Contains(t, extracted.Files, "test/index.js")
	require.NotContains(t, extracted.Files, "package/")
}

func TestExtractMissingManifestFails(t *testing.T) {
	data := buildTarGz(t, []tarEntry{
		{name: "package/index.js", body: "x"},
	})
	_, err := Extract(data)
	require.Error(t, err)
	require.True(t, pmerr.Is(err, pmerr.CodeInvalidPackageJSON))
}

func TestExtractInvalidManifestJSONFails(t *testing.T) {
	data := buildTarGz(t, []tarEntry{
		{name: "package/package.json", body: "{not json"},
	})
	_, err := Extract(data)
	require.Error(t, err)
	require.True(t, pmerr.Is(err, pmerr.CodeInvalidPackageJSON))
}

func TestExtractNotGzipFails(t *testing.T) {
	_, err := Extract([]byte("not a gzip stream"))
	require.Error(t, err)
	require.True(t, pmerr.Is(err, pmerr.CodeTarballError))
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	data := buildTarGz(t, []tarEntry{
		{name: "package/package.json", body: `{"name":"evil","version":"1.0.0"}`},
		{name: "package/../../etc/passwd", body: "pwned"},
	})
	_, err := Extract(data)
	require.Error(t, err)
	require.True(t, pmerr.Is(err, pmerr.CodeTarballError))
}

func TestFilterExcludesBuiltinPolicy(t *testing.T) {
	f := NewFilter()
	files := map[string][]byte{
		"index.js":      []byte("a"),
		"README.md":     []byte("b"),
		"test/index.js": []byte("c"),
		".git/HEAD":     []byte("d"),
		"LICENSE":       []byte("e"),
	}
	filtered := f.Apply(files)
	require.Contains(t, filtered, "index.js")
	require.NotContains(t, filtered, "README.md")
	require.NotContains(t, filtered, "test/index.js")
	require.NotContains(t, filtered, ".git/HEAD")
	require.NotContains(t, filtered, "LICENSE")
}
