package pkgcache

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultMaxEntries and DefaultMaxBytes bound the in-memory tier when a
// caller doesn't configure their own limits.
const (
	DefaultMaxEntries = 200
	DefaultMaxBytes   = 256 * 1024 * 1024
	DefaultTTL        = 24 * time.Hour
)

// Cache is the two-tier package cache (C4): an in-memory LRU in front of a
// PersistentStore. Persistent-tier failures are non-fatal — the cache logs a
// warning and continues memory-only, per §4.4.
type Cache struct {
	memory     *memoryTier
	persistent PersistentStore
	logger     hclog.Logger
	degraded   bool
}

// Config configures a Cache's capacity and persistence.
type Config struct {
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
	Persistent PersistentStore
	Logger     hclog.Logger
}

// New builds a Cache, defaulting any zero-valued Config fields.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Persistent == nil {
		cfg.Persistent = noopStore{}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Cache{
		memory:     newMemoryTier(cfg.MaxEntries, cfg.MaxBytes, cfg.TTL),
		persistent: cfg.Persistent,
		logger:     cfg.Logger,
	}
}

// noopStore is the PersistentStore used when none is configured: it keeps
// nothing, so the cache is memory-only.
type noopStore struct{}

func (noopStore) Read(string) ([]byte, bool, error) { return nil, false, nil }
func (noopStore) Write(string, []byte) error        { return nil }
func (noopStore) Remove(string) error               { return nil }
func (noopStore) List() ([]string, error)           { return nil, nil }

// Get returns the cached entry for (name, version). On a memory miss it
// consults the persistent store and, on a hit there, promotes the entry back
// into memory.
func (c *Cache) Get(name, version string) (Entry, bool) {
	key := Key(name, version)
	now := time.Now()

	if entry, ok := c.memory.get(key, now); ok {
		return entry, true
	}

	if c.degraded {
		return Entry{}, false
	}

	raw, ok, err := c.persistent.Read(key)
	if err != nil {
		c.markDegraded(err)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		c.logger.Warn("discarding corrupt persistent cache entry", "key", key, "error", err)
		_ = c.persistent.Remove(key)
		return Entry{}, false
	}
	if c.memory.expired(entry, now) {
		_ = c.persistent.Remove(key)
		return Entry{}, false
	}

	entry.LastUsed = now
	c.memory.set(key, entry)
	return entry, true
}

// Set inserts entry into memory and writes it through to the persistent
// tier.
func (c *Cache) Set(name, version string, entry Entry) {
	key := Key(name, version)
	now := time.Now()
	if entry.CachedAt.IsZero() {
		entry.CachedAt = now
	}
	entry.LastUsed = now

	c.memory.set(key, entry)

	if c.degraded {
		return
	}
	encoded, err := encodeEntry(entry)
	if err != nil {
		c.logger.Warn("failed to encode cache entry for persistent store", "key", key, "error", err)
		return
	}
	if err := c.persistent.Write(key, encoded); err != nil {
		c.markDegraded(err)
	}
}

// Has reports whether (name, version) is cached, honoring TTL expiry.
func (c *Cache) Has(name, version string) bool {
	_, ok := c.Get(name, version)
	return ok
}

// Remove evicts (name, version) from both tiers.
func (c *Cache) Remove(name, version string) {
	key := Key(name, version)
	c.memory.remove(key)
	if !c.degraded {
		_ = c.persistent.Remove(key)
	}
}

// Clear empties the memory tier. The persistent tier is left untouched —
// callers that want a full wipe enumerate the PersistentStore's List themselves, since
// a capability without enumeration support (an early OPFS polyfill, say)
// cannot honor it.
func (c *Cache) Clear() {
	c.memory.clear()
}

// Stats reports current occupancy and persistent-tier health.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:      c.memory.len(),
		Bytes:        c.memory.bytes,
		MaxEntries:   c.memory.maxEntries,
		MaxBytes:     c.memory.maxBytes,
		PersistentOK: !c.degraded,
	}
}

func (c *Cache) markDegraded(err error) {
	if c.degraded {
		return
	}
	c.degraded = true
	c.logger.Warn("persistent cache tier unavailable, degrading to memory-only", "error", err)
}
