package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pithecene-io/burrow/iox"
	"github.com/pithecene-io/burrow/log"
	"github.com/pithecene-io/burrow/types"
)

// RecordFileSuffix is appended to the record ID to name its file.
const RecordFileSuffix = "-record.msgpack"

// FileConfig configures a FileProvider.
type FileConfig struct {
	// Directory holds one file per record.
	Directory string
	// CreateDirectory creates Directory on Start. When false, Start
	// fails unless Directory already exists.
	CreateDirectory bool
	// Logger is optional.
	Logger *log.Logger
}

// FileProvider stores each record as a msgpack file in a directory.
type FileProvider struct {
	cfg FileConfig

	mu      sync.Mutex
	started bool
	closed  bool
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a provider over cfg.Directory.
func NewFileProvider(cfg FileConfig) *FileProvider {
	return &FileProvider{cfg: cfg}
}

// Start implements Provider.
func (p *FileProvider) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Directory == "" {
		return &StorageError{Kind: ErrNotFound, Op: "start", Err: fmt.Errorf("directory not configured")}
	}
	if p.cfg.CreateDirectory {
		if err := os.MkdirAll(p.cfg.Directory, 0o750); err != nil {
			return wrapError(err, "start", p.cfg.Directory)
		}
	} else {
		info, err := os.Stat(p.cfg.Directory)
		if err != nil {
			return wrapError(err, "start", p.cfg.Directory)
		}
		if !info.IsDir() {
			return &StorageError{Kind: ErrNotFound, Op: "start", Path: p.cfg.Directory, Err: fmt.Errorf("not a directory")}
		}
	}
	p.started = true
	p.closed = false
	return nil
}

// Path returns the file path of the record with the given ID.
func (p *FileProvider) Path(id string) string {
	return filepath.Join(p.cfg.Directory, id+RecordFileSuffix)
}

func (p *FileProvider) check(op string) error {
	switch {
	case p.closed:
		return &StorageError{Kind: ErrClosed, Op: op, Err: ErrClosed}
	case !p.started:
		return &StorageError{Kind: ErrNotStarted, Op: op, Err: ErrNotStarted}
	}
	return nil
}

// Add implements Provider.
func (p *FileProvider) Add(ctx context.Context, rec *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("add"); err != nil {
		return err
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return &StorageError{Kind: ErrCorrupt, Op: "add", Path: rec.ID, Err: err}
	}
	path := p.Path(rec.ID)
	return wrapError(iox.WriteFileAtomic(path, data, 0o600), "add", path)
}

// Delete implements Provider.
func (p *FileProvider) Delete(_ context.Context, rec *types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("delete"); err != nil {
		return err
	}

	path := p.Path(rec.ID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrapError(err, "delete", path)
	}
	return nil
}

// Get implements Provider. Files that fail to decode, and attachment
// records whose file vanished, are deleted.
func (p *FileProvider) Get(ctx context.Context) ([]*types.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("get"); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.cfg.Directory)
	if err != nil {
		return nil, wrapError(err, "get", p.cfg.Directory)
	}

	var records []*types.Record
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), RecordFileSuffix) {
			continue
		}
		path := filepath.Join(p.cfg.Directory, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			p.cfg.Logger.Warn("record file unreadable", map[string]any{"path": path, "error": err.Error()})
			continue
		}
		rec, err := decodeRecord(data)
		if err != nil {
			p.cfg.Logger.Warn("purging undecodable record file", map[string]any{"path": path, "error": err.Error()})
			_ = os.Remove(path)
			continue
		}
		if !reconcileAttachments(rec) {
			p.cfg.Logger.Info("purging attachment record with missing file", map[string]any{"record_id": rec.ID})
			_ = os.Remove(path)
			continue
		}
		records = append(records, rec)
	}

	sortByTimestamp(records)
	return records, nil
}

// Close implements Provider.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
