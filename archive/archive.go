// Package archive keeps a dead-letter trail of records the queue gave
// up on, so operators can inspect reports lost to retry exhaustion,
// capacity eviction or flush.
//
// Records are appended to a Lode dataset using a Hive layout partitioned
// by record kind and day, encoded as JSONL.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/burrow/types"
)

// Reason explains why a record left the queue without delivery.
type Reason string

// Reason constants.
const (
	ReasonRetriesExhausted Reason = "retries_exhausted"
	ReasonEvicted          Reason = "evicted"
	ReasonFlushed          Reason = "flushed"
)

// DefaultDataset is the default dataset ID.
const DefaultDataset = "burrow-dead-letter"

// Archiver records undelivered records.
type Archiver interface {
	// Archive appends records with the given reason.
	Archive(ctx context.Context, reason Reason, records ...*types.Record) error
	// Close releases archiver resources.
	Close() error
}

// Entry is one archived record as read back from the dataset.
type Entry struct {
	RecordID   string `json:"record_id"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
	Day        string `json:"day"`
	ArchivedAt string `json:"archived_at"`
	CreatedAt  string `json:"created_at"`
	Count      int    `json:"count"`
	SessionID  string `json:"session_id,omitempty"`
	RXID       string `json:"rxid,omitempty"`
	ReportUUID string `json:"report_uuid,omitempty"`
	// Payload is the JSON encoded report or attachment descriptor.
	Payload string `json:"payload,omitempty"`
}

// LodeArchiver appends archived records to a Lode dataset.
type LodeArchiver struct {
	dataset lode.Dataset

	mu  sync.Mutex // serializes snapshot writes
	now func() time.Time
}

var _ Archiver = (*LodeArchiver)(nil)

// newDataset creates the archive dataset over factory.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("kind", "day"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewLodeArchiver creates an archiver over factory.
func NewLodeArchiver(dataset string, factory lode.StoreFactory) (*LodeArchiver, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, fmt.Errorf("create archive dataset: %w", err)
	}
	return &LodeArchiver{dataset: ds, now: time.Now}, nil
}

// NewFSArchiver creates an archiver rooted at a local directory.
func NewFSArchiver(dataset, root string) (*LodeArchiver, error) {
	return NewLodeArchiver(dataset, lode.NewFSFactory(root))
}

// NewMemoryArchiver creates an in-memory archiver.
func NewMemoryArchiver() (*LodeArchiver, error) {
	return NewLodeArchiver(DefaultDataset, lode.NewMemoryFactory())
}

// WithClock overrides the archive timestamp source.
func (a *LodeArchiver) WithClock(now func() time.Time) *LodeArchiver {
	a.now = now
	return a
}

// Archive implements Archiver. All records land in one snapshot.
func (a *LodeArchiver) Archive(ctx context.Context, reason Reason, records ...*types.Record) error {
	if len(records) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now().UTC()
	rows := make([]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec, reason, at))
	}
	if _, err := a.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return fmt.Errorf("archive %d records: %w", len(records), err)
	}
	return nil
}

// toRow flattens a record into a dataset row. Attachment bytes are not
// archived, only their names and paths.
func toRow(rec *types.Record, reason Reason, at time.Time) map[string]any {
	row := map[string]any{
		"record_id":   rec.ID,
		"kind":        string(rec.Kind),
		"reason":      string(reason),
		"day":         at.Format("2006-01-02"),
		"archived_at": at.Format(time.RFC3339Nano),
		"created_at":  rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"count":       rec.Count,
	}
	if rec.SessionID != "" {
		row["session_id"] = rec.SessionID
	}
	if rec.RXID != "" {
		row["rxid"] = rec.RXID
	}

	var payload any
	switch rec.Kind {
	case types.RecordKindReport:
		if rec.Report != nil {
			row["report_uuid"] = rec.Report.UUID
		}
		payload = rec.Report
	case types.RecordKindAttachment:
		if rec.Attachment != nil {
			payload = types.Attachment{Name: rec.Attachment.Name, Path: rec.Attachment.Path}
		}
	}
	if payload != nil {
		// an unencodable payload still leaves the identifying columns
		if data, err := json.Marshal(payload); err == nil {
			row["payload"] = string(data)
		}
	}
	return row
}

// Entries reads every archived record, oldest snapshot first.
func (a *LodeArchiver) Entries(ctx context.Context) ([]Entry, error) {
	snapshots, err := a.dataset.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archive snapshots: %w", err)
	}

	var entries []Entry
	for _, snap := range snapshots {
		data, err := a.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, fmt.Errorf("read archive snapshot %s: %w", snap.ID, err)
		}
		for _, item := range data {
			row, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entries = append(entries, fromRow(row))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ArchivedAt < entries[j].ArchivedAt
	})
	return entries, nil
}

func fromRow(row map[string]any) Entry {
	str := func(key string) string {
		s, _ := row[key].(string)
		return s
	}
	e := Entry{
		RecordID:   str("record_id"),
		Kind:       str("kind"),
		Reason:     str("reason"),
		Day:        str("day"),
		ArchivedAt: str("archived_at"),
		CreatedAt:  str("created_at"),
		SessionID:  str("session_id"),
		RXID:       str("rxid"),
		ReportUUID: str("report_uuid"),
		Payload:    str("payload"),
	}
	switch n := row["count"].(type) {
	case float64:
		e.Count = int(n)
	case int:
		e.Count = n
	case int64:
		e.Count = int(n)
	}
	return e
}

// Close releases archiver resources.
func (a *LodeArchiver) Close() error {
	return nil
}
