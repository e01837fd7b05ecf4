// Package storage persists queue records so they survive restarts.
//
// A Provider is the single writer of on-disk record state. Records are
// always persisted unlocked: whatever lock an in-flight attempt held is
// gone after a restart.
package storage

import (
	"context"
	"os"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/burrow/types"
)

// Provider persists records.
type Provider interface {
	// Start prepares the backing store. A failing Start leaves the
	// queue disabled.
	Start(ctx context.Context) error
	// Add persists rec, replacing any previous version with the same ID.
	Add(ctx context.Context, rec *types.Record) error
	// Delete removes rec. Deleting an unknown record is not an error.
	Delete(ctx context.Context, rec *types.Record) error
	// Get returns every persisted record, oldest first. Undecodable
	// entries are purged rather than returned.
	Get(ctx context.Context) ([]*types.Record, error)
	// Close releases the backing store.
	Close() error
}

// encodeRecord serializes rec for persistence.
func encodeRecord(rec *types.Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

// decodeRecord restores a persisted record in the Pending state.
func decodeRecord(data []byte) (*types.Record, error) {
	rec := &types.Record{}
	if err := msgpack.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	if rec.ID == "" || (rec.Kind != types.RecordKindReport && rec.Kind != types.RecordKindAttachment) {
		return nil, ErrCorrupt
	}
	if rec.Kind == types.RecordKindReport && rec.Count < 1 {
		rec.Count = 1
	}
	return rec, nil
}

// reconcileAttachments drops file attachments that vanished while the
// record was persisted. It reports false when the record itself is no
// longer worth keeping: an attachment record whose file is gone.
func reconcileAttachments(rec *types.Record) bool {
	if rec.Kind == types.RecordKindAttachment {
		if rec.Attachment == nil {
			return false
		}
		return !rec.Attachment.IsFile() || fileExists(rec.Attachment.Path)
	}

	kept := rec.Attachments[:0]
	for _, a := range rec.Attachments {
		if a.IsFile() && !fileExists(a.Path) {
			continue
		}
		kept = append(kept, a)
	}
	rec.Attachments = kept
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sortByTimestamp(records []*types.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
