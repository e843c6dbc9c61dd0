// Package config builds the PM's runtime configuration: registry
// endpoint, timeouts, retry/backoff tuning, cache sizing, and the cache
// directory. Adapted from the teacher's internal/config.ParseAndValidate
// (env-var overlay via kelseyhightower/envconfig, hclog level selection),
// generalized from "CLI flags + TURBO_ env vars" to "defaults + WEBPM_ env
// vars", since this PM's native front end is a much smaller surface than
// turbo's.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the environment variable prefix envconfig.Process uses,
// mirroring the teacher's EnvLogLevel/TURBO_ convention.
const EnvPrefix = "WEBPM"

// Config holds every tunable the PM's components need, assembled once at
// startup by the CLI, which builds the registry client and package cache from
// it. MaxResolveDepth and MaxResolveIterations are loaded but not passed to
// the resolver, which applies its own defaults.
type Config struct {
	RegistryURL string `envconfig:"REGISTRY_URL"`

	MetadataTimeout time.Duration `envconfig:"METADATA_TIMEOUT"`
	TarballTimeout  time.Duration `envconfig:"TARBALL_TIMEOUT"`
	MetadataTTL     time.Duration `envconfig:"METADATA_TTL"`
	MaxAttempts     int           `envconfig:"MAX_ATTEMPTS"`
	StrictSRI       bool          `envconfig:"STRICT_SRI"`

	CacheDir        string        `envconfig:"CACHE_DIR"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES"`
	CacheMaxBytes   int64         `envconfig:"CACHE_MAX_BYTES"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL"`

	MaxResolveDepth      int `envconfig:"MAX_RESOLVE_DEPTH"`
	MaxResolveIterations int `envconfig:"MAX_RESOLVE_ITERATIONS"`

	LogLevel string `envconfig:"LOG_LEVEL"`

	Logger hclog.Logger `envconfig:"-"`
}

// Default returns the PM's baseline configuration before any environment
// overlay: a public-registry client pointed at npmjs, conservative
// timeouts, and an XDG-cache-rooted persistent store.
func Default() *Config {
	cacheDir, err := xdg.CacheFile(filepath.Join("webpm", "packages"))
	if err != nil {
		cacheDir = filepath.Join(".", ".webpm-cache")
	}

	return &Config{
		RegistryURL:          "https://registry.npmjs.org",
		MetadataTimeout:      10 * time.Second,
		TarballTimeout:       60 * time.Second,
		MetadataTTL:          5 * time.Minute,
		MaxAttempts:          3,
		StrictSRI:            false,
		CacheDir:             cacheDir,
		CacheMaxEntries:      200,
		CacheMaxBytes:        256 * 1024 * 1024,
		CacheTTL:             24 * time.Hour,
		MaxResolveDepth:      50,
		MaxResolveIterations: 10000,
		LogLevel:             "warn",
	}
}

// Load builds a Config from defaults overlaid with any WEBPM_* environment
// variables, exactly the "defaults, then env" precedence the teacher's
// envconfig.Process call implements (flags are layered on top by the CLI
// command itself, same as the teacher's arg-parsing loop does after
// ParseAndValidate's envconfig pass).
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}

	cfg.Logger = hclog.New(&hclog.LoggerOptions{
		Name:  "webpm",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	return cfg, nil
}
