package record_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/burrow/record"
	"github.com/pithecene-io/burrow/types"
)

func mustNewStore(t *testing.T, buckets int) *record.Store {
	t.Helper()
	s, err := record.NewStore(buckets)
	if err != nil {
		t.Fatalf("NewStore(%d): %v", buckets, err)
	}
	return s
}

func report(hash string) *types.Record {
	return types.NewReportRecord(&types.Report{UUID: types.NewRecordID()}, nil, hash, "", time.Now())
}

func attachment() *types.Record {
	return types.NewAttachmentRecord("rx", types.Attachment{Name: "a", Data: []byte("x")}, "", time.Now())
}

func TestNewStore_RejectsZeroBuckets(t *testing.T) {
	if _, err := record.NewStore(0); !errors.Is(err, record.ErrInvalidBucketCount) {
		t.Fatalf("NewStore(0) error = %v, want ErrInvalidBucketCount", err)
	}
}

func TestStore_AddMergesDuplicates(t *testing.T) {
	s := mustNewStore(t, 3)

	first, merged := s.Add(report("h1"))
	if merged {
		t.Fatal("first Add reported merge")
	}
	second, merged := s.Add(report("h1"))
	if !merged {
		t.Fatal("second Add with same hash did not merge")
	}
	if second != first {
		t.Error("merge returned a different record")
	}
	if first.Count != 2 {
		t.Errorf("Count = %d, want 2", first.Count)
	}
	if s.Count() != 1 {
		t.Errorf("store Count() = %d, want 1", s.Count())
	}
}

func TestStore_EmptyHashNeverMerges(t *testing.T) {
	s := mustNewStore(t, 3)
	s.Add(report(""))
	if _, merged := s.Add(report("")); merged {
		t.Error("records without hash merged")
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestStore_LockedRecordIsNotMergeTarget(t *testing.T) {
	s := mustNewStore(t, 3)
	first, _ := s.Add(report("h1"))
	first.Lock()

	second, merged := s.Add(report("h1"))
	if merged || second == first {
		t.Fatal("merged into a locked record")
	}
	if first.Count != 1 {
		t.Errorf("locked record count mutated: %d", first.Count)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestStore_DropOverLimitsEvictsOldest(t *testing.T) {
	s := mustNewStore(t, 3)
	var added []*types.Record
	for range 3 {
		r, _ := s.Add(report(""))
		added = append(added, r)
	}
	s.Add(attachment())

	// bump the oldest through a merge target to prove merges do not refresh age
	added[0].Hash = "old"
	s.Add(report("old"))

	evicted := s.DropOverLimits(
		map[types.RecordKind]int{types.RecordKindReport: 3, types.RecordKindAttachment: 0},
		map[types.RecordKind]int{types.RecordKindReport: 1},
	)
	if len(evicted) != 1 || evicted[0] != added[0] {
		t.Fatalf("evicted = %v, want oldest report", evicted)
	}
	if evicted[0].State() != types.RecordRemoved {
		t.Errorf("evicted state = %v", evicted[0].State())
	}
	counts := s.CountByKind()
	if counts[types.RecordKindReport] != 2 || counts[types.RecordKindAttachment] != 1 {
		t.Errorf("CountByKind() = %v", counts)
	}
}

func TestStore_IncreaseBucket(t *testing.T) {
	s := mustNewStore(t, 2)
	a, _ := s.Add(report(""))
	b, _ := s.Add(report(""))

	if dropped := s.IncreaseBucket(0); dropped != nil {
		t.Fatalf("escalation within range dropped %v", dropped)
	}
	if len(s.Bucket(0)) != 0 || len(s.Bucket(1)) != 2 {
		t.Fatalf("bucket sizes = %d/%d, want 0/2", len(s.Bucket(0)), len(s.Bucket(1)))
	}

	c, _ := s.Add(report(""))
	dropped := s.IncreaseBucket(1)
	if len(dropped) != 2 || dropped[0] != a || dropped[1] != b {
		t.Fatalf("dropped = %v, want [a b]", dropped)
	}
	if s.Count() != 1 || s.Bucket(0)[0] != c {
		t.Errorf("remaining records wrong: count=%d", s.Count())
	}
}

func TestStore_IncreaseBucketAppendsToNext(t *testing.T) {
	s := mustNewStore(t, 3)
	a, _ := s.Add(report(""))
	s.IncreaseBucket(0)
	b, _ := s.Add(report(""))
	s.IncreaseBucket(0)

	bucket := s.Bucket(1)
	if len(bucket) != 2 || bucket[0] != a || bucket[1] != b {
		t.Errorf("bucket 1 = %v, want [a b]", bucket)
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	s := mustNewStore(t, 3)
	r, _ := s.Add(report(""))

	if !s.Remove(r) {
		t.Fatal("first Remove returned false")
	}
	if s.Remove(r) {
		t.Error("second Remove returned true")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestStore_BucketReturnsCopy(t *testing.T) {
	s := mustNewStore(t, 1)
	r, _ := s.Add(report(""))
	snapshot := s.Bucket(0)
	s.Remove(r)

	if len(snapshot) != 1 || snapshot[0] != r {
		t.Error("removal mutated a previously returned bucket")
	}
	if s.Bucket(5) != nil {
		t.Error("out-of-range bucket is not nil")
	}
}

func TestStore_LoadPreservesOrder(t *testing.T) {
	s := mustNewStore(t, 3)
	recs := []*types.Record{report(""), attachment(), report("")}
	s.Load(recs)

	got := s.Get()
	if len(got) != 3 {
		t.Fatalf("Get() len = %d", len(got))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Errorf("Get()[%d] out of order", i)
		}
	}
	found := s.Find(func(r *types.Record) bool { return r.Kind == types.RecordKindAttachment })
	if found != recs[1] {
		t.Error("Find did not return attachment record")
	}
}
