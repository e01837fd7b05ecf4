// Package metrics provides counters for the durable queue and breadcrumb
// storage, exportable to Prometheus.
//
// The Collector is a leaf package with no internal dependencies. Record
// lifecycle counters are absorbed from queue.Stats rather than recorded
// live, avoiding double-counting; submission outcomes and background
// failures are recorded live as they happen.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
type Snapshot struct {
	// Record lifecycle (absorbed from queue.Stats)
	RecordsAdded   int64
	RecordsMerged  int64
	RecordsEvicted int64
	RecordsSent    int64
	RecordsDropped int64
	RecordsFlushed int64
	RecordsPending int64
	SendPasses     int64
	AttemptsFailed int64

	// Submission outcomes by status
	Submissions map[string]int64

	// Background failures
	StorageFailures int64
	ArchiveFailures int64
	ArchivedRecords int64

	// Breadcrumbs
	BreadcrumbsWritten int64
	BreadcrumbsDropped int64

	// Dimensions (informational, set at construction)
	InstanceID     string
	StorageBackend string
	Submission     string
}

// Collector accumulates metrics for one queue instance.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	recordsAdded   int64
	recordsMerged  int64
	recordsEvicted int64
	recordsSent    int64
	recordsDropped int64
	recordsFlushed int64
	recordsPending int64
	sendPasses     int64
	attemptsFailed int64

	submissions map[string]int64

	storageFailures int64
	archiveFailures int64
	archivedRecords int64

	breadcrumbsWritten int64
	breadcrumbsDropped int64

	instanceID     string
	storageBackend string
	submission     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(instanceID, storageBackend, submission string) *Collector {
	return &Collector{
		submissions:    make(map[string]int64),
		instanceID:     instanceID,
		storageBackend: storageBackend,
		submission:     submission,
	}
}

// IncSubmission records one submission attempt outcome.
func (c *Collector) IncSubmission(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.submissions[status]++
	c.mu.Unlock()
}

// IncStorageFailure records a failed storage provider call.
func (c *Collector) IncStorageFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storageFailures++
	c.mu.Unlock()
}

// IncArchived records a record appended to the dead-letter archive.
func (c *Collector) IncArchived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archivedRecords++
	c.mu.Unlock()
}

// IncArchiveFailure records a failed dead-letter archive write.
func (c *Collector) IncArchiveFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveFailures++
	c.mu.Unlock()
}

// IncBreadcrumbWritten records a breadcrumb line written to disk.
func (c *Collector) IncBreadcrumbWritten() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.breadcrumbsWritten++
	c.mu.Unlock()
}

// IncBreadcrumbDropped records a breadcrumb lost to a full queue or a
// failed write.
func (c *Collector) IncBreadcrumbDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.breadcrumbsDropped++
	c.mu.Unlock()
}

// AbsorbQueueStats copies record lifecycle counters from a queue stats
// snapshot. Arguments are primitives to keep this package free of
// dependencies on the queue package.
func (c *Collector) AbsorbQueueStats(added, merged, evicted, sent, dropped, flushed, pending, passes, failed int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsAdded = added
	c.recordsMerged = merged
	c.recordsEvicted = evicted
	c.recordsSent = sent
	c.recordsDropped = dropped
	c.recordsFlushed = flushed
	c.recordsPending = pending
	c.sendPasses = passes
	c.attemptsFailed = failed
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	submissions := make(map[string]int64, len(c.submissions))
	for k, v := range c.submissions {
		submissions[k] = v
	}

	return Snapshot{
		RecordsAdded:   c.recordsAdded,
		RecordsMerged:  c.recordsMerged,
		RecordsEvicted: c.recordsEvicted,
		RecordsSent:    c.recordsSent,
		RecordsDropped: c.recordsDropped,
		RecordsFlushed: c.recordsFlushed,
		RecordsPending: c.recordsPending,
		SendPasses:     c.sendPasses,
		AttemptsFailed: c.attemptsFailed,

		Submissions: submissions,

		StorageFailures: c.storageFailures,
		ArchiveFailures: c.archiveFailures,
		ArchivedRecords: c.archivedRecords,

		BreadcrumbsWritten: c.breadcrumbsWritten,
		BreadcrumbsDropped: c.breadcrumbsDropped,

		InstanceID:     c.instanceID,
		StorageBackend: c.storageBackend,
		Submission:     c.submission,
	}
}
