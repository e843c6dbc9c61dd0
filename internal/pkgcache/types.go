// Package pkgcache implements the two-tier package cache (C4): a bounded
// in-memory LRU plus a content-addressed persistent store, both keyed by
// name@version, with TTL expiry checked lazily on read.
package pkgcache

import (
	"strings"
	"time"

	"webpm/internal/manifest"
)

// Entry is a cached ExtractedPackage, per §3.
type Entry struct {
	Name       string
	Version    string
	TarballURL string
	Integrity  string
	Files      map[string][]byte
	Manifest   *manifest.Manifest
	TotalSize  int64
	CachedAt   time.Time
	LastUsed   time.Time
}

// Key builds the cache key for (name, version): scoped names have their "/"
// escaped to "__" so the key is safe to use as a persistent-store entry name,
// per §4.4.
func Key(name, version string) string {
	return strings.ReplaceAll(name, "/", "__") + "@" + version
}

// Stats reports current occupancy and persistent-tier health, as returned by
// Cache.Stats.
type Stats struct {
	Entries      int
	Bytes        int64
	MaxEntries   int
	MaxBytes     int64
	PersistentOK bool
}
