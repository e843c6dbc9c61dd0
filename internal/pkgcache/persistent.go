package pkgcache

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/google/uuid"

	"webpm/internal/manifest"
	"webpm/internal/vfs"
)

// PersistentStore is the Persistent Cache Capability from §6, reduced to the
// operations this package needs: named-entry read, write, remove, and
// enumeration. If unavailable, the cache degrades to memory-only: the first
// Read or Write error marks the Cache degraded, after which it no longer
// calls the store and Stats reports PersistentOK false.
type PersistentStore interface {
	Read(name string) ([]byte, bool, error)
	Write(name string, data []byte) error
	Remove(name string) error
	List() ([]string, error)
}

// MemoryStore is a PersistentStore backed by a plain map, for a browser tab
// without OPFS and for tests. New does not use it by default.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Read(name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (s *MemoryStore) Write(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[name] = stored
	return nil
}

func (s *MemoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	return names, nil
}

// DiskStore is a PersistentStore rooted at a directory of a vfs.FS (normally
// vfs.Native for the CLI front end). Write first writes the data to a
// google/uuid-named temporary entry, then writes it again to the final name
// and removes the temporary entry. vfs.FS has no rename, so the write to the
// final name is an ordinary WriteFile and is not atomic.
type DiskStore struct {
	fs   vfs.FS
	root string
}

// NewDiskStore roots a DiskStore at root within fs, creating the directory
// if needed.
func NewDiskStore(fs vfs.FS, root string) (*DiskStore, error) {
	if err := fs.Mkdir(root, true); err != nil && !fs.Exists(root) {
		return nil, err
	}
	return &DiskStore{fs: fs, root: root}, nil
}

func (s *DiskStore) path(name string) string {
	return vfs.Join(s.root, name)
}

func (s *DiskStore) Read(name string) ([]byte, bool, error) {
	data, err := s.fs.ReadFile(s.path(name))
	if err != nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *DiskStore) Write(name string, data []byte) error {
	tmp := s.path(".tmp-" + uuid.NewString())
	if err := s.fs.WriteFile(tmp, data); err != nil {
		return err
	}
	defer func() { _ = s.fs.Rmdir(tmp, false) }()
	if err := s.fs.WriteFile(s.path(name), data); err != nil {
		return err
	}
	return nil
}

func (s *DiskStore) Remove(name string) error {
	return s.fs.Rmdir(s.path(name), false)
}

func (s *DiskStore) List() ([]string, error) {
	names, err := s.fs.Readdir(s.root)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if len(n) < 5 || n[:5] != ".tmp-" {
			out = append(out, n)
		}
	}
	return out, nil
}

// serializedEntry is the on-disk shape of an Entry: files as [path,bytes]
// pairs so they round-trip through JSON, per §4.4.
type serializedEntry struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	TarballURL  string          `json:"tarballUrl"`
	Integrity   string          `json:"integrity"`
	Files       [][2]string     `json:"files"`
	ManifestRaw json.RawMessage `json:"manifest"`
	TotalSize   int64           `json:"totalSize"`
}

func encodeEntry(e Entry) ([]byte, error) {
	files := make([][2]string, 0, len(e.Files))
	for path, data := range e.Files {
		files = append(files, [2]string{path, string(data)})
	}
	manifestRaw, err := e.Manifest.Encode()
	if err != nil {
		return nil, err
	}
	se := serializedEntry{
		Name:        e.Name,
		Version:     e.Version,
		TarballURL:  e.TarballURL,
		Integrity:   e.Integrity,
		Files:       files,
		ManifestRaw: manifestRaw,
		TotalSize:   e.TotalSize,
	}
	plain, err := json.Marshal(se)
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	zw := zstd.NewWriter(&compressed)
	if _, err := zw.Write(plain); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

func decodeEntry(compressed []byte) (Entry, error) {
	zr := zstd.NewReader(bytes.NewReader(compressed))
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return Entry{}, err
	}
	var se serializedEntry
	if err := json.Unmarshal(plain, &se); err != nil {
		return Entry{}, err
	}
	m, err := manifest.Parse(se.ManifestRaw)
	if err != nil {
		return Entry{}, err
	}
	files := make(map[string][]byte, len(se.Files))
	for _, pair := range se.Files {
		files[pair[0]] = []byte(pair[1])
	}
	return Entry{
		Name:       se.Name,
		Version:    se.Version,
		TarballURL: se.TarballURL,
		Integrity:  se.Integrity,
		Files:      files,
		Manifest:   m,
		TotalSize:  se.TotalSize,
	}, nil
}

