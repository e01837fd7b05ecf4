// Package record holds the in-memory retry buckets of the durable queue.
//
// The Store owns record lifecycle and bucket membership. It never touches
// persistent storage; callers mirror every change through a storage
// provider.
package record

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/burrow/types"
)

// ErrInvalidBucketCount is returned when a store is created with no buckets.
var ErrInvalidBucketCount = errors.New("bucket count must be at least 1")

// Store is a set of records partitioned into retry buckets.
// Bucket i holds records that failed i consecutive send passes.
type Store struct {
	mu      sync.Mutex
	buckets [][]*types.Record
	// seq records insertion order; eviction targets the lowest.
	seq     map[*types.Record]uint64
	nextSeq uint64
}

// NewStore creates a store with the given number of buckets.
func NewStore(bucketCount int) (*Store, error) {
	if bucketCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBucketCount, bucketCount)
	}
	return &Store{
		buckets: make([][]*types.Record, bucketCount),
		seq:     make(map[*types.Record]uint64),
	}, nil
}

// Add inserts rec into bucket 0, or merges it into an existing unlocked
// record of the same kind and non-empty hash. On merge the existing
// record's count grows and it is returned with merged=true.
func (s *Store) Add(rec *types.Record) (stored *types.Record, merged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findDuplicateLocked(rec); existing != nil {
		existing.Count += max(rec.Count, 1)
		return existing, true
	}
	s.insertLocked(0, rec)
	return rec, false
}

// FindDuplicate returns the unlocked record rec would merge into, if any.
func (s *Store) FindDuplicate(rec *types.Record) *types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findDuplicateLocked(rec)
}

func (s *Store) findDuplicateLocked(rec *types.Record) *types.Record {
	if rec.Kind != types.RecordKindReport || rec.Hash == "" {
		return nil
	}
	for _, bucket := range s.buckets {
		for _, r := range bucket {
			if r.Kind == rec.Kind && r.Hash == rec.Hash && r.State() == types.RecordPending {
				return r
			}
		}
	}
	return nil
}

func (s *Store) insertLocked(bucket int, rec *types.Record) {
	s.buckets[bucket] = append(s.buckets[bucket], rec)
	s.seq[rec] = s.nextSeq
	s.nextSeq++
}

// Find returns the first record, in bucket order, matching pred.
func (s *Store) Find(pred func(*types.Record) bool) *types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range s.buckets {
		for _, r := range bucket {
			if pred(r) {
				return r
			}
		}
	}
	return nil
}

// Get returns all records, bucket by bucket.
func (s *Store) Get() []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Record
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seq)
}

// CountByKind returns the number of stored records per kind.
func (s *Store) CountByKind() map[types.RecordKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.RecordKind]int, 2)
	for r := range s.seq {
		out[r.Kind]++
	}
	return out
}

// DropOverLimits evicts, oldest first, the records that must go so
// that after inserting incoming[kind] new records no kind exceeds
// limits[kind]. Kinds missing from limits, or with a limit of 0, are
// unbounded. The evicted records are returned so the caller can purge
// them from persistent storage.
func (s *Store) DropOverLimits(limits, incoming map[types.RecordKind]int) []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[types.RecordKind]int, 2)
	for r := range s.seq {
		counts[r.Kind]++
	}

	var evicted []*types.Record
	for kind, limit := range limits {
		if limit <= 0 {
			continue
		}
		excess := counts[kind] + incoming[kind] - limit
		for ; excess > 0; excess-- {
			oldest := s.oldestLocked(kind)
			if oldest == nil {
				break
			}
			s.removeLocked(oldest)
			oldest.MarkRemoved()
			evicted = append(evicted, oldest)
		}
	}
	return evicted
}

func (s *Store) oldestLocked(kind types.RecordKind) *types.Record {
	var (
		oldest *types.Record
		best   uint64
	)
	for r, seq := range s.seq {
		if r.Kind != kind {
			continue
		}
		if oldest == nil || seq < best {
			oldest, best = r, seq
		}
	}
	return oldest
}

// Load bulk-inserts records recovered at startup into bucket 0,
// preserving the given order.
func (s *Store) Load(records []*types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.insertLocked(0, r)
	}
}

// Bucket returns a copy of bucket i. Out-of-range indexes yield nil.
func (s *Store) Bucket(i int) []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.buckets) {
		return nil
	}
	out := make([]*types.Record, len(s.buckets[i]))
	copy(out, s.buckets[i])
	return out
}

// BucketCount returns the number of buckets.
func (s *Store) BucketCount() int {
	return len(s.buckets)
}

// IncreaseBucket escalates every record of bucket i to bucket i+1.
// Records escalated past the last bucket have exhausted their retries:
// they leave the store and are returned.
func (s *Store) IncreaseBucket(i int) []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.buckets) {
		return nil
	}

	moving := s.buckets[i]
	s.buckets[i] = nil
	if i+1 < len(s.buckets) {
		s.buckets[i+1] = append(s.buckets[i+1], moving...)
		return nil
	}

	for _, r := range moving {
		delete(s.seq, r)
		r.MarkRemoved()
	}
	return moving
}

// Remove drops rec from its bucket. It reports whether rec was present.
func (s *Store) Remove(rec *types.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLocked(rec) {
		return false
	}
	rec.MarkRemoved()
	return true
}

func (s *Store) removeLocked(rec *types.Record) bool {
	if _, ok := s.seq[rec]; !ok {
		return false
	}
	delete(s.seq, rec)
	for i, bucket := range s.buckets {
		for j, r := range bucket {
			if r == rec {
				s.buckets[i] = append(bucket[:j:j], bucket[j+1:]...)
				return true
			}
		}
	}
	return true
}
