package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTraversal(t *testing.T) {
	require.Equal(t, "/", Clean(""))
	require.Equal(t, "/a/b", Clean("a/b"))
	require.Equal(t, "/a/b", Clean("/a/../a/b"))
	require.Equal(t, "/", Clean("../../../etc/passwd/.."))
	require.Equal(t, "/etc/passwd", Clean("../../etc/passwd"))
}

func TestSplitAndJoin(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Split("/a/b/c"))
	require.Nil(t, Split("/"))
	require.Equal(t, "/a/b", Join("a", "b"))
	require.Equal(t, "/a/b", Join("/a", "../a", "b"))
}

func testFS(t *testing.T, fs FS) {
	t.Helper()

	require.NoError(t, fs.Mkdir("/pkg", true))
	require.NoError(t, fs.WriteFile("/pkg/index.js", []byte("module.exports = 1;")))
	require.True(t, fs.Exists("/pkg/index.js"))

	data, err := fs.ReadFile("/pkg/index.js")
	require.NoError(t, err)
	require.Equal(t, "module.exports = 1;", string(data))

	_, err = fs.ReadFile("/pkg/missing.js")
	require.Error(t, err)

	names, err := fs.Readdir("/pkg")
	require.NoError(t, err)
	require.Equal(t, []string{"index.js"}, names)

	require.NoError(t, fs.WriteFile("/pkg/nested/deep.js", []byte("x")))
	require.True(t, fs.Exists("/pkg/nested"))

	require.Error(t, fs.Rmdir("/pkg", false), "non-recursive rmdir on non-empty dir must fail")
	require.NoError(t, fs.Rmdir("/pkg", true))
	require.False(t, fs.Exists("/pkg"))
}

func TestMemoryFS(t *testing.T) {
	testFS(t, NewMemory())
}

func TestNativeFS(t *testing.T) {
	dir := t.TempDir()
	nfs, err := NewNative(filepath.Join(dir, "root"))
	require.NoError(t, err)
	testFS(t, nfs)
}

func TestNativeFSRoot(t *testing.T) {
	dir := t.TempDir()
	nfs, err := NewNative(dir)
	require.NoError(t, err)
	require.DirExists(t, nfs.Root())
	_, statErr := os.Stat(nfs.Root())
	require.NoError(t, statErr)
}
