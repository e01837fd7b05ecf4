package archive

import (
	"context"
	"sync"

	"github.com/pithecene-io/burrow/types"
)

// StubArchiver records archive calls for tests.
type StubArchiver struct {
	mu sync.Mutex

	// Err is returned by Archive when set.
	Err error

	calls []StubCall
}

// StubCall is one recorded Archive call.
type StubCall struct {
	Reason    Reason
	RecordIDs []string
}

var _ Archiver = (*StubArchiver)(nil)

// Archive implements Archiver.
func (s *StubArchiver) Archive(_ context.Context, reason Reason, records ...*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := StubCall{Reason: reason}
	for _, r := range records {
		call.RecordIDs = append(call.RecordIDs, r.ID)
	}
	s.calls = append(s.calls, call)
	return s.Err
}

// Calls returns recorded calls.
func (s *StubArchiver) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StubCall(nil), s.calls...)
}

// Archived returns the IDs archived for reason.
func (s *StubArchiver) Archived(reason Reason) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, c := range s.calls {
		if c.Reason == reason {
			ids = append(ids, c.RecordIDs...)
		}
	}
	return ids
}

// Close implements Archiver.
func (s *StubArchiver) Close() error { return nil }
