package stream

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"
)

// FileSystem is the storage a FileChunkSink rotates files on.
type FileSystem interface {
	// Create opens path for writing, truncating any existing file.
	Create(path string) (io.WriteCloser, error)
	// Remove deletes path.
	Remove(path string) error
}

// OSFS is the local file system.
type OSFS struct{}

var _ FileSystem = OSFS{}

// Create implements FileSystem.
func (OSFS) Create(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
}

// Remove implements FileSystem.
func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

// MemoryFS is an in-memory FileSystem for tests.
type MemoryFS struct {
	mu    sync.Mutex
	files map[string]*bytes.Buffer

	// CreateErr is returned by Create when set.
	CreateErr error
}

var _ FileSystem = (*MemoryFS)(nil)

// NewMemoryFS creates an empty MemoryFS.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{files: make(map[string]*bytes.Buffer)}
}

// Create implements FileSystem.
func (m *MemoryFS) Create(path string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	buf := &bytes.Buffer{}
	m.files[path] = buf
	return &memoryFile{fs: m, buf: buf}, nil
}

// Remove implements FileSystem.
func (m *MemoryFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.files, path)
	return nil
}

// ReadFile returns the content of path.
func (m *MemoryFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Paths returns existing paths in lexical order.
func (m *MemoryFS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type memoryFile struct {
	fs     *MemoryFS
	buf    *bytes.Buffer
	closed bool
}

func (f *memoryFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.buf.Write(p)
}

func (f *memoryFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return nil
}
