// Package tarball implements the tar+gzip extractor (C3): decompress a
// registry tarball into an in-memory file map and parse its package.json
// manifest. Built directly on archive/tar and compress/gzip the same way the
// teacher's cacheitem package builds (rather than parses) tar streams — there
// is no wrapping ecosystem tar-parsing library anywhere in the example pack,
// so this is one of the few components that stays on the standard library
// (see DESIGN.md).
package tarball

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"webpm/internal/manifest"
	"webpm/internal/pmerr"
)

// Extracted is the result of extracting a tarball: a flat file map keyed by
// path relative to the package root, the parsed manifest, and size counters.
type Extracted struct {
	Files     map[string][]byte
	Manifest  *manifest.Manifest
	TotalSize int64
	FileCount int
}

// packagePrefix is the conventional leading directory npm tarballs wrap their
// contents in.
const packagePrefix = "package/"

// Extract decompresses and parses a gzip-wrapped tar stream per §4.3:
// stripping the "package/" prefix, resolving GNU long-name and PAX headers,
// and skipping directory entries (they produce no file, directories are
// implied by file paths).
func Extract(data []byte) (*Extracted, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(pmerr.New(pmerr.CodeTarballError, "not a valid gzip stream"), err.Error())
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	result := &Extracted{Files: map[string][]byte{}}

	var pendingLongName string

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pmerr.New(pmerr.CodeTarballError, fmt.Sprintf("reading tar header: %s", err))
		}

		name := header.Name
		if pendingLongName != "" {
			name = pendingLongName
			pendingLongName = ""
		}

		switch header.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			// PAX extended headers are metadata only; archive/tar already
			// folds their values into the following header, so there is
			// nothing further for us to apply. Skip producing a file.
			continue
		case 'L':
			// GNU long-name: body is the path for the next header. Go's
			// archive/tar resolves this transparently in Header.Name for
			// well-formed archives, but tolerate a raw passthrough too.
			longName, err := io.ReadAll(tr)
			if err != nil {
				return nil, pmerr.New(pmerr.CodeTarballError, "reading GNU long name entry")
			}
			pendingLongName = strings.TrimRight(string(longName), "\x00")
			continue
		case tar.TypeDir:
			continue
		}

		if strings.HasSuffix(name, "/") {
			continue
		}

		relPath := strings.TrimPrefix(name, packagePrefix)
		if relPath == "" {
			continue
		}
		if !isSafePath(relPath) {
			return nil, pmerr.New(pmerr.CodeTarballError, fmt.Sprintf("unsafe tar entry path %q", name))
		}

		buf := make([]byte, header.Size)
		if _, err := io.ReadFull(tr, buf); err != nil && err != io.EOF {
			return nil, pmerr.New(pmerr.CodeTarballError, fmt.Sprintf("reading entry %q: %s", relPath, err))
		}

		result.Files[relPath] = buf
		result.TotalSize += header.Size
		result.FileCount++
	}

	raw, ok := result.Files["package.json"]
	if !ok {
		return nil, pmerr.New(pmerr.CodeInvalidPackageJSON, "tarball has no package.json at its root")
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(pmerr.New(pmerr.CodeInvalidPackageJSON, "package.json is not valid JSON"), err.Error())
	}
	result.Manifest = m

	return result, nil
}

// isSafePath guards against a malicious tarball attempting to write outside
// the package root, mirroring the traversal check the teacher's cacheitem
// restore path applies to every tar entry name.
func isSafePath(p string) bool {
	if p == "" || p == "." || p == ".." {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "../") || strings.Contains(p, "/../") {
		return false
	}
	return true
}
