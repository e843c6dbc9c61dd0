// Package vfs implements the Filesystem capability (spec §6): readFile,
// writeFile, readdir, mkdir(recursive), rmdir(recursive), against a POSIX-
// shaped path namespace rooted at a configurable project root. It is
// adapted from the teacher's internal/fs.AbsolutePath + afero pattern,
// generalized into a single small interface so the orchestrator and the
// browser/native entry points can each supply their own backend (an
// in-memory tree here, and an OPFS-backed one from the JS host, which is an
// external collaborator per spec §1).
package vfs

import (
	"path"
	"strings"
)

// DefaultRoot is the project root used when a caller doesn't configure one,
// matching spec §6's "default /home/project".
const DefaultRoot = "/home/project"

// FS is the Filesystem capability contract.
type FS interface {
	ReadFile(p string) ([]byte, error)
	WriteFile(p string, data []byte) error
	Readdir(p string) ([]string, error)
	Mkdir(p string, recursive bool) error
	Rmdir(p string, recursive bool) error
	Exists(p string) bool
}

// Clean normalizes p into a slash-separated, absolute-from-root path without
// "." or ".." segments, guarding every capability call against path
// traversal out of the project root — the same defensive posture the
// teacher's cacheitem package applies to tar entries (errTraversal).
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	return cleaned
}

// Join joins path segments and cleans the result.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Dir returns the parent of p.
func Dir(p string) string {
	return Clean(path.Dir(Clean(p)))
}

// Base returns the final path element of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Split breaks p into its slash-separated segments, ignoring the leading
// empty segment produced by the leading "/".
func Split(p string) []string {
	c := strings.Trim(Clean(p), "/")
	if c == "" {
		return nil
	}
	return strings.Split(c, "/")
}
