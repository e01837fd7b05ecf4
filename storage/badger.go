package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/pithecene-io/burrow/log"
	"github.com/pithecene-io/burrow/types"
)

// badgerKeyPrefix namespaces record keys inside the database.
var badgerKeyPrefix = []byte("record/")

// BadgerConfig configures a BadgerProvider.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory.
	Path string
	// InMemory keeps the database in memory, for tests.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// Logger is optional. Badger's own logging is routed through it.
	Logger *log.Logger
}

// DefaultBadgerConfig returns a durable configuration for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// BadgerProvider stores records in an embedded badger database,
// keyed by record ID.
type BadgerProvider struct {
	cfg BadgerConfig

	mu sync.Mutex
	db *badger.DB
}

var _ Provider = (*BadgerProvider)(nil)

// NewBadgerProvider creates a provider. The database opens on Start.
func NewBadgerProvider(cfg BadgerConfig) *BadgerProvider {
	return &BadgerProvider{cfg: cfg}
}

// badgerLogger adapts log.Logger to badger.Logger.
type badgerLogger struct {
	sugar *log.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.sugar.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.sugar.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.sugar.Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.sugar.Debugf(format, args...) }

// Start implements Provider.
func (p *BadgerProvider) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return nil
	}

	var opts badger.Options
	if p.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if p.cfg.Path == "" {
			return &StorageError{Kind: ErrNotFound, Op: "start", Err: errors.New("path is required for persistent database")}
		}
		if err := os.MkdirAll(p.cfg.Path, 0o750); err != nil {
			return wrapError(err, "start", p.cfg.Path)
		}
		opts = badger.DefaultOptions(p.cfg.Path)
	}
	opts = opts.WithSyncWrites(p.cfg.SyncWrites).WithNumVersionsToKeep(1)
	if p.cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{sugar: p.cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return wrapError(fmt.Errorf("open badger database: %w", err), "start", p.cfg.Path)
	}
	p.db = db
	return nil
}

func (p *BadgerProvider) handle(op string) (*badger.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, &StorageError{Kind: ErrNotStarted, Op: op, Err: ErrNotStarted}
	}
	return p.db, nil
}

func recordKey(id string) []byte {
	return append(append([]byte(nil), badgerKeyPrefix...), id...)
}

// Add implements Provider.
func (p *BadgerProvider) Add(ctx context.Context, rec *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := p.handle("add")
	if err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return &StorageError{Kind: ErrCorrupt, Op: "add", Path: rec.ID, Err: err}
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	})
	return wrapError(err, "add", rec.ID)
}

// Delete implements Provider.
func (p *BadgerProvider) Delete(_ context.Context, rec *types.Record) error {
	db, err := p.handle("delete")
	if err != nil {
		return err
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(rec.ID))
	})
	return wrapError(err, "delete", rec.ID)
}

// Get implements Provider.
func (p *BadgerProvider) Get(ctx context.Context) ([]*types.Record, error) {
	db, err := p.handle("get")
	if err != nil {
		return nil, err
	}

	var (
		records []*types.Record
		purge   [][]byte
	)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerKeyPrefix); it.ValidForPrefix(badgerKeyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec *types.Record
			err := item.Value(func(val []byte) error {
				var derr error
				rec, derr = decodeRecord(val)
				return derr
			})
			if err != nil || !reconcileAttachments(rec) {
				purge = append(purge, item.KeyCopy(nil))
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "get", p.cfg.Path)
	}

	if len(purge) > 0 {
		p.cfg.Logger.Warn("purging unusable records", map[string]any{"count": len(purge)})
		err := db.Update(func(txn *badger.Txn) error {
			for _, key := range purge {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			p.cfg.Logger.Warn("purge failed", map[string]any{"error": err.Error()})
		}
	}

	sortByTimestamp(records)
	return records, nil
}

// Close implements Provider.
func (p *BadgerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return wrapError(err, "close", p.cfg.Path)
}
