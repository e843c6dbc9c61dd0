package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webpm/internal/registry"
)

// fixturePackage is the minimal wire shape GetPackageMetadata expects.
type fixturePackage struct {
	Name     string                    `json:"name"`
	DistTags map[string]string         `json:"dist-tags"`
	Versions map[string]fixtureVersion `json:"versions"`
}

type fixtureVersion struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Dist             fixtureDist       `json:"dist"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
}

type fixtureDist struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
}

func newFixtureServer(t *testing.T, packages map[string]fixturePackage) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for name, pkg := range packages {
		pkg := pkg
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(pkg))
		})
	}
	return httptest.NewServer(mux)
}

func ver(name, version string, deps map[string]string) fixtureVersion {
	return fixtureVersion{
		Name:         name,
		Version:      version,
		Dist:         fixtureDist{Tarball: "https://example.invalid/" + name + "-" + version + ".tgz", Integrity: ""},
		Dependencies: deps,
	}
}

func TestResolveDiamondDependency(t *testing.T) {
	packages := map[string]fixturePackage{
		"app": {
			Name:     "app",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("app", "1.0.0", nil),
			},
		},
		"left": {
			Name:     "left",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("left", "1.0.0", map[string]string{"shared": "^1.0.0"}),
			},
		},
		"right": {
			Name:     "right",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("right", "1.0.0", map[string]string{"shared": "^1.0.0"}),
			},
		},
		"shared": {
			Name:     "shared",
			DistTags: map[string]string{"latest": "1.2.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("shared", "1.0.0", nil),
				"1.2.0": ver("shared", "1.2.0", nil),
			},
		},
	}
	srv := newFixtureServer(t, packages)
	defer srv.Close()

	client := registry.NewClient(registry.Options{BaseURL: srv.URL})
	r := New(client)

	result, err := r.Resolve(context.Background(), map[string]string{
		"left":  "^1.0.0",
		"right": "^1.0.0",
	}, Options{})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	left := result.Tree.Children["left"]
	right := result.Tree.Children["right"]
	require.NotNil(t, left)
	require.NotNil(t, right)

	leftShared := left.Children["shared"]
	rightShared := right.Children["shared"]
	require.NotNil(t, leftShared)
	require.NotNil(t, rightShared)
	require.Equal(t, "1.2.0", leftShared.Version)
	require.Equal(t, "1.2.0", rightShared.Version)
}

func TestResolveCycleIsSafe(t *testing.T) {
	packages := map[string]fixturePackage{
		"a": {
			Name:     "a",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("a", "1.0.0", map[string]string{"b": "^1.0.0"}),
			},
		},
		"b": {
			Name:     "b",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("b", "1.0.0", map[string]string{"a": "^1.0.0"}),
			},
		},
	}
	srv := newFixtureServer(t, packages)
	defer srv.Close()

	client := registry.NewClient(registry.Options{BaseURL: srv.URL})
	r := New(client)

	done := make(chan struct{})
	var result *Result
	var err error
	go func() {
		result, err = r.Resolve(context.Background(), map[string]string{"a": "^1.0.0"}, Options{MaxDepth: 10})
		close(done)
	}()

	select {
	case <-done:
	// ok, terminated
	case <-timeoutChan():
		t.Fatal("resolve did not terminate on a dependency cycle")
	}

	require.NoError(t, err)
	require.NotNil(t, result.Tree.Children["a"])
	// b's second-level edge back to a must have been cut by the ancestor check.
	require.Nil(t, result.Tree.Children["a"].Children["b"].Children["a"])
}

func TestResolveMissingVersionWarnsAndDropsBranch(t *testing.T) {
	packages := map[string]fixturePackage{
		"app": {
			Name:     "app",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]fixtureVersion{
				"1.0.0": ver("app", "1.0.0", nil),
			},
		},
	}
	srv := newFixtureServer(t, packages)
	defer srv.Close()

	client := registry.NewClient(registry.Options{BaseURL: srv.URL})
	r := New(client)

	result, err := r.Resolve(context.Background(), map[string]string{"missing-pkg": "^1.0.0"}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Warnings)
	require.Nil(t, result.Tree.Children["missing-pkg"])
}

func timeoutChan() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-time.After(5 * time.Second)
		close(ch)
	}()
	return ch
}
