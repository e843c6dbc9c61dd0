// Package registry implements the registry client (C2): package metadata and
// tarball fetch, retry/timeout, SRI verification, and a metadata TTL cache.
// Modeled on the teacher's internal/client.APIClient — a retryablehttp.Client
// wrapping a pooled transport — generalized from Vercel's remote-cache API to
// npm's registry wire format.
package registry

import "time"

// Dist is the `dist` object of a version's metadata: where to fetch its
// tarball and how to verify it.
type Dist struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
	Shasum    string `json:"shasum"`
}

// VersionInfo is a single entry of a package's `versions` map.
type VersionInfo struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dist                 Dist              `json:"dist"`
	Dependencies         map[string]string `json:"dependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Bin                  map[string]string `json:"bin"`
	Engines              map[string]string `json:"engines"`
}

// PackageMetadata is the decoded `GET /<name>` response.
type PackageMetadata struct {
	Name     string                 `json:"name"`
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]VersionInfo `json:"versions"`
}

// ResolvedPackage is the identity + fetch/verify data the resolver memoizes
// per (name, version).
type ResolvedPackage struct {
	Name             string
	Version          string
	TarballURL       string
	Integrity        string
	Dependencies     map[string]string
	PeerDependencies map[string]string
}

// cacheEntry is a TTL-guarded PackageMetadata slot.
type cacheEntry struct {
	metadata PackageMetadata
	cachedAt time.Time
}
