package types

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecordKind discriminates the two record variants held by the queue.
type RecordKind string

// Record kind constants.
const (
	RecordKindReport     RecordKind = "report"
	RecordKindAttachment RecordKind = "attachment"
)

// RecordState is the lifecycle state of a record.
//
// Pending records are eligible for a send attempt. Locked records are
// owned by an in-flight attempt and must not be touched by another one.
// Removed is terminal.
type RecordState int32

// Record state constants.
const (
	RecordPending RecordState = iota
	RecordLocked
	RecordRemoved
)

// String returns the state name.
func (s RecordState) String() string {
	switch s {
	case RecordPending:
		return "pending"
	case RecordLocked:
		return "locked"
	case RecordRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Record is a unit of durable pending work: either a report awaiting
// submission or an attachment awaiting upload against a known rxid.
//
// The lock state is never serialized; a record loaded from storage is
// always Pending.
type Record struct {
	// Kind selects the variant.
	Kind RecordKind `msgpack:"kind" json:"kind"`
	// ID uniquely identifies the record across restarts.
	ID string `msgpack:"id" json:"id"`
	// Timestamp is the creation time.
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
	// SessionID is the session the record was produced in, if known.
	SessionID string `msgpack:"session_id,omitempty" json:"session_id,omitempty"`

	// Hash is the deduplication key of a report record. Empty disables merging.
	Hash string `msgpack:"hash,omitempty" json:"hash,omitempty"`
	// Count is how many equivalent reports this record represents.
	Count int `msgpack:"count,omitempty" json:"count,omitempty"`
	// Report is the payload of a report record.
	Report *Report `msgpack:"report,omitempty" json:"report,omitempty"`
	// Attachments travel with a report record.
	Attachments []Attachment `msgpack:"attachments,omitempty" json:"attachments,omitempty"`

	// RXID is the remote identifier an attachment record uploads against.
	RXID string `msgpack:"rxid,omitempty" json:"rxid,omitempty"`
	// Attachment is the payload of an attachment record.
	Attachment *Attachment `msgpack:"attachment,omitempty" json:"attachment,omitempty"`

	state atomic.Int32
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// NewReportRecord creates a pending report record.
func NewReportRecord(report *Report, attachments []Attachment, hash, sessionID string, now time.Time) *Record {
	return &Record{
		Kind:        RecordKindReport,
		ID:          NewRecordID(),
		Timestamp:   now,
		SessionID:   sessionID,
		Hash:        hash,
		Count:       1,
		Report:      report,
		Attachments: attachments,
	}
}

// NewAttachmentRecord creates a pending attachment record bound to rxid.
func NewAttachmentRecord(rxid string, attachment Attachment, sessionID string, now time.Time) *Record {
	return &Record{
		Kind:       RecordKindAttachment,
		ID:         NewRecordID(),
		Timestamp:  now,
		SessionID:  sessionID,
		RXID:       rxid,
		Attachment: &attachment,
	}
}

// State returns the current lifecycle state.
func (r *Record) State() RecordState {
	return RecordState(r.state.Load())
}

// Locked reports whether an attempt currently owns the record.
func (r *Record) Locked() bool {
	return r.State() == RecordLocked
}

// Lock transitions Pending to Locked. It returns false if the record
// was not Pending.
func (r *Record) Lock() bool {
	return r.state.CompareAndSwap(int32(RecordPending), int32(RecordLocked))
}

// Unlock transitions Locked back to Pending. Removed records stay removed.
func (r *Record) Unlock() {
	r.state.CompareAndSwap(int32(RecordLocked), int32(RecordPending))
}

// MarkRemoved moves the record to the terminal state.
// It returns false if the record was already removed.
func (r *Record) MarkRemoved() bool {
	return RecordState(r.state.Swap(int32(RecordRemoved))) != RecordRemoved
}

// AttachmentFiles returns the file paths referenced by the record.
func (r *Record) AttachmentFiles() []string {
	var paths []string
	if r.Attachment != nil && r.Attachment.IsFile() {
		paths = append(paths, r.Attachment.Path)
	}
	for _, a := range r.Attachments {
		if a.IsFile() {
			paths = append(paths, a.Path)
		}
	}
	return paths
}
