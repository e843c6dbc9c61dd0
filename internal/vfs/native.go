package vfs

import (
	"os"
	"path/filepath"

	"github.com/moby/sys/sequential"
	"github.com/yookoala/realpath"
)

// Native is a real-disk Filesystem capability implementation, rooted at an
// absolute directory on the host filesystem. It is the backend the CLI front
// end (cmd/webpm) uses, adapted from the teacher's internal/fs AbsolutePath
// helpers (MkdirAll/ReadFile/WriteFile) generalized behind the vfs.FS
// interface so internal/pm never branches on backend.
type Native struct {
	root string
}

var _ FS = (*Native)(nil)

// NewNative roots a Native filesystem at root, creating it if necessary.
func NewNative(root string) (*Native, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	resolved, err := realpath.Realpath(root)
	if err != nil {
		resolved = root
	}
	return &Native{root: resolved}, nil
}

func (n *Native) native(p string) string {
	return filepath.Join(n.root, filepath.FromSlash(Clean(p)))
}

func (n *Native) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(n.native(p))
}

func (n *Native) WriteFile(p string, data []byte) error {
	full := n.native(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	// Sequential mode avoids needless readahead on Windows for files the
	// PM writes once and doesn't revisit — the same rationale the
	// teacher's cacheitem package gives for using this package on tarball
	// member reads.
	f, err := sequential.CreateFile(full)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (n *Native) Readdir(p string) ([]string, error) {
	entries, err := os.ReadDir(n.native(p))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (n *Native) Mkdir(p string, recursive bool) error {
	full := n.native(p)
	if recursive {
		return os.MkdirAll(full, 0o755)
	}
	return os.Mkdir(full, 0o755)
}

func (n *Native) Rmdir(p string, recursive bool) error {
	full := n.native(p)
	if recursive {
		return os.RemoveAll(full)
	}
	return os.Remove(full)
}

func (n *Native) Exists(p string) bool {
	_, err := os.Stat(n.native(p))
	return err == nil
}

// Root returns the absolute native directory this filesystem is rooted at.
func (n *Native) Root() string {
	return n.root
}
