package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrInvalidMaxFiles is returned when a sink allows no files.
var ErrInvalidMaxFiles = errors.New("max files must be at least 1")

// FileChunkSinkConfig configures a FileChunkSink.
type FileChunkSinkConfig struct {
	// MaxFiles bounds how many files exist at once.
	MaxFiles int
	// File names the n-th file (required).
	File func(n int) string
	// FS defaults to the local file system.
	FS FileSystem
}

// FileChunkSink opens one file per destination and keeps at most
// MaxFiles of them: opening one more closes and deletes the oldest.
type FileChunkSink struct {
	cfg FileChunkSinkConfig

	mu    sync.Mutex
	files []*sinkFile // oldest first
}

// NewFileChunkSink creates a sink.
func NewFileChunkSink(cfg FileChunkSinkConfig) (*FileChunkSink, error) {
	if cfg.MaxFiles < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxFiles, cfg.MaxFiles)
	}
	if cfg.File == nil {
		return nil, errors.New("file chunk sink requires a file naming function")
	}
	if cfg.FS == nil {
		cfg.FS = OSFS{}
	}
	return &FileChunkSink{cfg: cfg}, nil
}

// Sink returns the destination factory to hand to a Chunkifier.
func (s *FileChunkSink) Sink() Sink {
	return s.open
}

func (s *FileChunkSink) open(n int) (io.WriteCloser, error) {
	path := s.cfg.File(n)
	w, err := s.cfg.FS.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file %s: %w", path, err)
	}
	f := &sinkFile{path: path, w: w}

	s.mu.Lock()
	s.files = append(s.files, f)
	var evicted []*sinkFile
	if over := len(s.files) - s.cfg.MaxFiles; over > 0 {
		evicted = append(evicted, s.files[:over]...)
		s.files = append([]*sinkFile(nil), s.files[over:]...)
	}
	s.mu.Unlock()

	for _, old := range evicted {
		// eviction is best effort; the new destination is already open
		_ = old.Close()
		_ = s.cfg.FS.Remove(old.path)
	}
	return f, nil
}

// Files returns the paths of live files, oldest first.
func (s *FileChunkSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, len(s.files))
	for i, f := range s.files {
		paths[i] = f.path
	}
	return paths
}

// sinkFile tracks whether its writer was closed so eviction never
// closes twice.
type sinkFile struct {
	path string

	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func (f *sinkFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fmt.Errorf("write %s: %w", f.path, ErrClosed)
	}
	return f.w.Write(p)
}

func (f *sinkFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.w.Close()
}
