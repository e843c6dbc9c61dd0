package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-gatedio"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"webpm/internal/pmerr"
)

// DefaultMetadataTTL is how long a PackageMetadata entry is served from
// memory before a fresh fetch is required, per §3.
const DefaultMetadataTTL = 5 * time.Minute

// DefaultRegistryURL is npm's public registry, used when no override is
// configured.
const DefaultRegistryURL = "https://registry.npmjs.org"

// DefaultMaxAttempts is the retry budget for a single metadata or tarball
// fetch, per §4.2.
const DefaultMaxAttempts = 3

// Client is the Registry capability: package metadata + tarball fetch with
// retry/timeout, an in-memory metadata TTL cache, and SRI verification.
// Built on retryablehttp.Client over a cleanhttp pooled transport, the same
// shape as the teacher's internal/client.APIClient.
type Client struct {
	baseURL      string
	metadataHTTP *retryablehttp.Client
	tarballHTTP  *retryablehttp.Client
	logger       hclog.Logger

	// diagnostics is a concurrency-safe sink multiple in-flight fetches can
	// append retry/warning lines to without their own locking; the
	// orchestrator drains it after an install.
	diagnostics *gatedio.ByteBuffer

	mu            sync.Mutex
	metadataCache map[string]cacheEntry
	metadataTTL   time.Duration
	maxAttempts   int
	strictSRI     bool
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	MetadataTTL     time.Duration
	MaxAttempts     int
	MetadataTimeout time.Duration
	TarballTimeout  time.Duration
	StrictSRI       bool
	Logger          hclog.Logger
}

// NewClient builds a Client with sane defaults for any zero-valued Options
// fields.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRegistryURL
	}
	if opts.MetadataTTL <= 0 {
		opts.MetadataTTL = DefaultMetadataTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 10 * time.Second
	}
	if opts.TarballTimeout <= 0 {
		opts.TarballTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		metadataHTTP:  newRetryableClient(opts.MetadataTimeout, opts.Logger),
		tarballHTTP:   newRetryableClient(opts.TarballTimeout, opts.Logger),
		logger:        opts.Logger,
		diagnostics:   gatedio.NewByteBuffer(),
		metadataCache: map[string]cacheEntry{},
		metadataTTL:   opts.MetadataTTL,
		maxAttempts:   opts.MaxAttempts,
		strictSRI:     opts.StrictSRI,
	}
}

// newRetryableClient wraps a pooled transport for connection reuse, request
// logging, and retryablehttp's response draining/body-reset handling, but
// performs no retries of its own (RetryMax 0): the attempt budget and
// backoff schedule are owned by the single outer policy in
// GetPackageMetadata/DownloadTarball, per §4.2 — one retry layer, not two.
func newRetryableClient(timeout time.Duration, logger hclog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   timeout,
	}
	c.Logger = logger
	c.RetryMax = 0
	return c
}

// powerOfTwoBackoff implements backoff.BackOff with the literal `2^attempt`
// seconds schedule §4.2 specifies, rather than cenkalti/backoff/v4's default
// exponential curve (500ms initial, ×1.5 multiplier).
type powerOfTwoBackoff struct {
	attempt int
}

func (b *powerOfTwoBackoff) NextBackOff() time.Duration {
	b.attempt++
	return (1 << uint(b.attempt)) * time.Second
}

func (b *powerOfTwoBackoff) Reset() {
	b.attempt = 0
}

// retryPolicy returns a backoff.BackOff allowing at most maxAttempts total
// attempts (1 initial + maxAttempts-1 retries) on the literal 2^attempt
// schedule, per §4.2.
func retryPolicy(maxAttempts int) backoff.BackOff {
	retries := maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(&powerOfTwoBackoff{}, uint64(retries))
}

// Diagnostics returns accumulated retry/warning log lines and clears the
// buffer.
func (c *Client) Diagnostics() string {
	s := c.diagnostics.String()
	c.diagnostics.Reset()
	return s
}

func (c *Client) logWarn(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	c.logger.Warn(line)
	_, _ = c.diagnostics.Write([]byte(line + "\n"))
}

func encodeScopedName(name string) string {
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name[1:], "/", 2)
		if len(parts) == 2 {
			return "@" + parts[0] + "%2F" + parts[1]
		}
	}
	return url.PathEscape(name)
}

// GetPackageMetadata fetches (or serves from the TTL cache) a package's full
// metadata document, per §4.2.
func (c *Client) GetPackageMetadata(ctx context.Context, name string) (PackageMetadata, error) {
	c.mu.Lock()
	entry, ok := c.metadataCache[name]
	fresh := ok && time.Since(entry.cachedAt) < c.metadataTTL
	c.mu.Unlock()
	if fresh {
		return entry.metadata, nil
	}

	var metadata PackageMetadata
	op := func() error {
		reqURL := fmt.Sprintf("%s/%s", c.baseURL, encodeScopedName(name))
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.metadataHTTP.Do(req)
		if err != nil {
			c.logWarn("metadata fetch for %s failed, retrying: %s", name, err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(pmerr.ForPackage(pmerr.CodePackageNotFound, name, "package not found in registry"))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("registry returned status %d for %s", resp.StatusCode, name)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &metadata); err != nil {
			return backoff.Permanent(pmerr.ForPackage(pmerr.CodeInvalidPackageJSON, name, "malformed registry metadata"))
		}
		return nil
	}

	if err := backoff.Retry(op, retryPolicy(c.maxAttempts)); err != nil {
		if pmerr.Is(err, pmerr.CodePackageNotFound) || pmerr.Is(err, pmerr.CodeInvalidPackageJSON) {
			return PackageMetadata{}, err
		}
		return PackageMetadata{}, pmerr.ForPackage(pmerr.CodeNetworkError, name, err.Error())
	}

	c.mu.Lock()
	c.metadataCache[name] = cacheEntry{metadata: metadata, cachedAt: time.Now()}
	c.mu.Unlock()

	return metadata, nil
}

// GetVersionInfo resolves versionOrTag (an exact version, a range anchor, or
// a dist-tag) against a package's metadata and returns the matching
// VersionInfo. Range/exact resolution against the `versions` map is the
// resolver's job (internal/resolver uses internal/semver against the
// returned metadata directly); this helper only resolves exact versions and
// tags, per §4.2's "resolves tags via dist-tags first".
func (c *Client) GetVersionInfo(ctx context.Context, name, versionOrTag string) (VersionInfo, error) {
	metadata, err := c.GetPackageMetadata(ctx, name)
	if err != nil {
		return VersionInfo{}, err
	}
	if tagged, ok := metadata.DistTags[versionOrTag]; ok {
		versionOrTag = tagged
	}
	vi, ok := metadata.Versions[versionOrTag]
	if !ok {
		return VersionInfo{}, pmerr.ForVersion(pmerr.CodeVersionNotFound, name, versionOrTag, "no such version")
	}
	return vi, nil
}

// DownloadTarball fetches a tarball's raw bytes with retry, per §4.2.
func (c *Client) DownloadTarball(ctx context.Context, tarballURL string) ([]byte, error) {
	var data []byte
	op := func() error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.tarballHTTP.Do(req)
		if err != nil {
			c.logWarn("tarball fetch %s failed, retrying: %s", tarballURL, err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("registry returned status %d for tarball %s", resp.StatusCode, tarballURL)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		data = body
		return nil
	}

	if err := backoff.Retry(op, retryPolicy(c.maxAttempts)); err != nil {
		return nil, pmerr.New(pmerr.CodeNetworkError, err.Error())
	}
	return data, nil
}
