package pm

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"webpm/internal/pkgcache"
	"webpm/internal/registry"
	"webpm/internal/vfs"
)

func buildFixtureTarball(t *testing.T, name, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	pkgJSON, err := json.Marshal(map[string]string{"name": name, "version": version})
	require.NoError(t, err)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "package/package.json", Size: int64(len(pkgJSON)), Mode: 0644}))
	_, err = tw.Write(pkgJSON)
	require.NoError(t, err)

	indexJS := []byte("module.exports = 1;")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "package/index.js", Size: int64(len(indexJS)), Mode: 0644}))
	_, err = tw.Write(indexJS)
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstallEndToEnd(t *testing.T) {
	tarballData := buildFixtureTarball(t, "left-pad", "1.3.0")

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name":      "left-pad",
			"dist-tags": map[string]string{"latest": "1.3.0"},
			"versions": map[string]interface{}{
				"1.3.0": map[string]interface{}{
					"name":    "left-pad",
					"version": "1.3.0",
					"dist":    map[string]string{"tarball": srv.URL + "/tarballs/left-pad-1.3.0.tgz", "integrity": ""},
				},
			},
		})
	})
	mux.HandleFunc("/tarballs/left-pad-1.3.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tarballData)
	})

	client := registry.NewClient(registry.Options{BaseURL: srv.URL})
	cache := pkgcache.New(pkgcache.Config{})
	fs := vfs.NewMemory()
	instance := New(fs, "/home/project", client, cache, nil)

	require.NoError(t, fs.WriteFile("/home/project/package.json", []byte(`{"name":"app","version":"1.0.0"}`)))

	result, err := instance.Install(context.Background(), []string{"left-pad@^1.0.0"}, InstallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)
	require.Len(t, result.Installed, 1)
	require.Equal(t, "left-pad", result.Installed[0].Name)
	require.Equal(t, "1.3.0", result.Installed[0].Version)

	data, err := fs.ReadFile("/home/project/node_modules/left-pad/package.json")
	require.NoError(t, err)
	require.Contains(t, string(data), "left-pad")

	lockData, err := fs.ReadFile("/home/project/package-lock.json")
	require.NoError(t, err)
	require.Contains(t, string(lockData), "node_modules/left-pad")

	manifestData, err := fs.ReadFile("/home/project/package.json")
	require.NoError(t, err)
	require.Contains(t, string(manifestData), "left-pad")

	listed, err := instance.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "left-pad", listed[0].Name)
}

func TestUninstallRemovesPackageAndRegeneratesLockfile(t *testing.T) {
	tarballData := buildFixtureTarball(t, "left-pad", "1.3.0")
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name":      "left-pad",
			"dist-tags": map[string]string{"latest": "1.3.0"},
			"versions": map[string]interface{}{
				"1.3.0": map[string]interface{}{
					"name":    "left-pad",
					"version": "1.3.0",
					"dist":    map[string]string{"tarball": srv.URL + "/tarballs/left-pad-1.3.0.tgz", "integrity": ""},
				},
			},
		})
	})
	mux.HandleFunc("/tarballs/left-pad-1.3.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tarballData)
	})

	client := registry.NewClient(registry.Options{BaseURL: srv.URL})
	cache := pkgcache.New(pkgcache.Config{})
	fs := vfs.NewMemory()
	instance := New(fs, "/home/project", client, cache, nil)

	require.NoError(t, fs.WriteFile("/home/project/package.json", []byte(`{"name":"app","version":"1.0.0"}`)))
	_, err := instance.Install(context.Background(), []string{"left-pad@^1.0.0"}, InstallOptions{})
	require.NoError(t, err)
	require.True(t, fs.Exists("/home/project/node_modules/left-pad"))

	result, err := instance.Uninstall(context.Background(), []string{"left-pad"}, InstallOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.False(t, fs.Exists("/home/project/node_modules/left-pad"))

	manifestData, err := fs.ReadFile("/home/project/package.json")
	require.NoError(t, err)
	require.NotContains(t, string(manifestData), "left-pad")
}

func TestRunReportsMissingScriptAsScriptError(t *testing.T) {
	client := registry.NewClient(registry.Options{})
	cache := pkgcache.New(pkgcache.Config{})
	fs := vfs.NewMemory()
	instance := New(fs, "/home/project", client, cache, nil)
	require.NoError(t, fs.WriteFile("/home/project/package.json", []byte(`{"name":"app","version":"1.0.0","scripts":{"build":"echo hi"}}`)))

	require.NoError(t, instance.Run(context.Background(), "build"))
	err := instance.Run(context.Background(), "nonexistent")
	require.Error(t, err)
}
