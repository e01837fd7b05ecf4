package queue

import "sync"

// Stats is a point-in-time view of queue activity.
type Stats struct {
	// Added counts records inserted as new.
	Added int64
	// Merged counts reports folded into an existing record.
	Merged int64
	// Evicted counts records dropped to respect capacity limits.
	Evicted int64
	// Sent counts records resolved by a terminal submission status.
	Sent int64
	// Failed counts submission attempts that escalated a bucket.
	Failed int64
	// Dropped counts records that exhausted their retries.
	Dropped int64
	// Flushed counts records discarded by Flush without delivery.
	Flushed int64
	// SendPasses counts completed or aborted send passes.
	SendPasses int64
	// Pending is the number of records currently held.
	Pending int64
}

// statsRecorder guards queue counters. The queue records mutations
// explicitly; the recorder infers nothing.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) add(field *int64, n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	*field += int64(n)
	r.mu.Unlock()
}

func (r *statsRecorder) incAdded()        { r.add(&r.stats.Added, 1) }
func (r *statsRecorder) incMerged()       { r.add(&r.stats.Merged, 1) }
func (r *statsRecorder) incSent()         { r.add(&r.stats.Sent, 1) }
func (r *statsRecorder) incFailed()       { r.add(&r.stats.Failed, 1) }
func (r *statsRecorder) incPasses()       { r.add(&r.stats.SendPasses, 1) }
func (r *statsRecorder) incEvicted(n int) { r.add(&r.stats.Evicted, n) }
func (r *statsRecorder) incDropped(n int) { r.add(&r.stats.Dropped, n) }
func (r *statsRecorder) incFlushed(n int) { r.add(&r.stats.Flushed, n) }

// snapshot returns the counters with pending filled in.
func (r *statsRecorder) snapshot(pending int) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Pending = int64(pending)
	return s
}
