// Package breadcrumbs keeps a bounded, append-only breadcrumb log on
// disk as rotating newline-delimited JSON files.
package breadcrumbs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc"

	"github.com/pithecene-io/burrow/log"
	"github.com/pithecene-io/burrow/metrics"
	"github.com/pithecene-io/burrow/stream"
	"github.com/pithecene-io/burrow/types"
)

// FilePrefix names every breadcrumb file: <prefix>-<index>.
const FilePrefix = "bt-breadcrumbs"

// Defaults.
const (
	DefaultMaximumBreadcrumbs = 100
	DefaultQueueSize          = 256
	// liveFiles is how many rotated files are kept.
	liveFiles = 2
)

// ErrInvalidConfig is returned for unusable storage settings.
var ErrInvalidConfig = errors.New("invalid breadcrumbs config")

// Config configures a Storage.
type Config struct {
	// Directory holds the breadcrumb files (required).
	Directory string
	// MaximumBreadcrumbs bounds the entries kept across all files.
	MaximumBreadcrumbs int
	// MaximumTotalSize bounds the bytes kept across all files.
	// Zero means unbounded.
	MaximumTotalSize int
	// QueueSize bounds entries waiting to be written. Entries added
	// while the queue is full are dropped.
	QueueSize int

	FS      stream.FileSystem
	Metrics *metrics.Collector
	Logger  *log.Logger
	Now     func() time.Time
}

// DefaultConfig returns a Config for directory with default limits.
func DefaultConfig(directory string) Config {
	return Config{
		Directory:          directory,
		MaximumBreadcrumbs: DefaultMaximumBreadcrumbs,
		QueueSize:          DefaultQueueSize,
	}
}

// write is one queued entry, or a flush barrier when done is set.
type write struct {
	line []byte
	done chan struct{}
}

// Storage appends breadcrumbs to rotating files. Add never blocks on
// I/O: entries go through a queue drained by a single writer, so file
// order follows call order.
type Storage struct {
	cfg    Config
	sink   *stream.FileChunkSink
	writer *stream.Chunkifier

	queue chan write
	wg    conc.WaitGroup

	mu     sync.Mutex
	lastID int64
	closed bool
}

// New creates the storage and starts its writer.
func New(cfg Config) (*Storage, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrInvalidConfig)
	}
	if cfg.MaximumBreadcrumbs == 0 {
		cfg.MaximumBreadcrumbs = DefaultMaximumBreadcrumbs
	}
	if cfg.MaximumBreadcrumbs < 0 || cfg.MaximumTotalSize < 0 {
		return nil, fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FS == nil {
		cfg.FS = stream.OSFS{}
	}
	if _, ok := cfg.FS.(stream.OSFS); ok {
		if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
			return nil, fmt.Errorf("create breadcrumbs directory: %w", err)
		}
	}

	splitter, err := newSplitter(cfg.MaximumBreadcrumbs, cfg.MaximumTotalSize)
	if err != nil {
		return nil, err
	}
	sink, err := stream.NewFileChunkSink(stream.FileChunkSinkConfig{
		MaxFiles: liveFiles,
		File:     func(n int) string { return filepath.Join(cfg.Directory, FileName(n)) },
		FS:       cfg.FS,
	})
	if err != nil {
		return nil, err
	}
	writer, err := stream.NewChunkifier(stream.ChunkifierConfig{
		Splitter: splitter,
		Sink:     sink.Sink(),
	})
	if err != nil {
		return nil, err
	}

	s := &Storage{
		cfg:    cfg,
		sink:   sink,
		writer: writer,
		queue:  make(chan write, cfg.QueueSize),
		lastID: cfg.Now().Unix(),
	}
	s.wg.Go(s.drain)
	return s, nil
}

// newSplitter splits the budget evenly across the live files. The
// length cut runs first so entries it drops never take a line slot.
func newSplitter(maxBreadcrumbs, maxTotalSize int) (stream.SplitterFactory, error) {
	lines, err := stream.LineSplitter(max(1, maxBreadcrumbs/liveFiles))
	if err != nil {
		return nil, err
	}
	if maxTotalSize == 0 {
		return lines, nil
	}
	length, err := stream.LengthSplitter(max(1, maxTotalSize/liveFiles), stream.WholeLinesSkip)
	if err != nil {
		return nil, err
	}
	return stream.Combine(length, lines), nil
}

// FileName returns the base name of the n-th breadcrumb file.
func FileName(n int) string {
	return FilePrefix + "-" + strconv.Itoa(n)
}

// LastID returns the id of the most recent breadcrumb.
func (s *Storage) LastID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Add records a breadcrumb and returns its id. The write happens in
// the background; failures only show up in metrics.
func (s *Storage) Add(raw types.RawBreadcrumb) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	id := s.lastID
	if s.closed {
		s.cfg.Metrics.IncBreadcrumbDropped()
		return id
	}

	crumb := types.Breadcrumb{
		ID:         id,
		Timestamp:  s.cfg.Now().UnixMilli(),
		Message:    raw.Message,
		Type:       raw.Type,
		Level:      raw.Level,
		Attributes: raw.Attributes,
	}
	if crumb.Type == "" {
		crumb.Type = types.BreadcrumbManual
	}
	if crumb.Level == "" {
		crumb.Level = types.BreadcrumbInfo
	}

	line, err := json.Marshal(crumb)
	if err != nil {
		s.cfg.Metrics.IncBreadcrumbDropped()
		return id
	}
	line = append(line, '\n')

	select {
	case s.queue <- write{line: line}:
	default:
		s.cfg.Metrics.IncBreadcrumbDropped()
	}
	return id
}

func (s *Storage) drain() {
	for w := range s.queue {
		if w.done != nil {
			close(w.done)
			continue
		}
		if _, err := s.writer.Write(w.line); err != nil {
			s.cfg.Metrics.IncBreadcrumbDropped()
			continue
		}
		s.cfg.Metrics.IncBreadcrumbWritten()
	}
}

// Flush waits until every breadcrumb added before the call is written.
func (s *Storage) Flush(ctx context.Context) error {
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	select {
	case s.queue <- write{done: done}:
		s.mu.Unlock()
	case <-ctx.Done():
		s.mu.Unlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attachments returns the live breadcrumb files, oldest first.
func (s *Storage) Attachments() []types.Attachment {
	return toAttachments(s.sink.Files())
}

// Close drains pending writes and closes the current file.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.writer.Close(); err != nil {
		s.cfg.Logger.Warn("close breadcrumbs file", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}

// SessionAttachments returns the breadcrumb files a previous process
// left in directory, oldest first.
func SessionAttachments(directory string) ([]types.Attachment, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		path  string
		index int
	}
	var files []indexed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(e.Name(), FilePrefix+"-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		files = append(files, indexed{path: filepath.Join(directory, e.Name()), index: n})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	if len(files) > liveFiles {
		files = files[len(files)-liveFiles:]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return toAttachments(paths), nil
}

func toAttachments(paths []string) []types.Attachment {
	out := make([]types.Attachment, len(paths))
	for i, p := range paths {
		out[i] = types.Attachment{Name: filepath.Base(p), Path: p}
	}
	return out
}
