// Package queue is the durable offline submission queue.
//
// A Queue mirrors a record.Store to a storage.Provider and drains it
// through a submit.Client. Records that fail move up one retry bucket
// per send pass and are dropped once they fail in the last bucket.
// Delivery is at least once; duplicate reports merge into one record
// when deduplication is enabled.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/pithecene-io/burrow/archive"
	"github.com/pithecene-io/burrow/dedup"
	"github.com/pithecene-io/burrow/log"
	"github.com/pithecene-io/burrow/metrics"
	"github.com/pithecene-io/burrow/record"
	"github.com/pithecene-io/burrow/session"
	"github.com/pithecene-io/burrow/storage"
	"github.com/pithecene-io/burrow/submit"
	"github.com/pithecene-io/burrow/types"
)

// Defaults.
const (
	DefaultMaximumNumberOfRecords           = 8
	DefaultMaximumNumberOfAttachmentRecords = 10
	DefaultRetryInterval                    = 60 * time.Second
	DefaultMaximumRetries                   = 3
)

var (
	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("invalid queue config")
	// ErrStartFailed is returned by Start when the storage provider
	// cannot start. The queue stays disabled.
	ErrStartFailed = errors.New("queue storage failed to start")
	// ErrDisposed is returned by Start after Dispose.
	ErrDisposed = errors.New("queue disposed")
)

// Config configures a Queue.
type Config struct {
	// AutoSend runs a send pass on Start and then every RetryInterval.
	AutoSend bool
	// MaximumNumberOfRecords caps report records. Zero means unlimited.
	MaximumNumberOfRecords int
	// MaximumNumberOfAttachmentRecords caps attachment records.
	// Zero means unlimited.
	MaximumNumberOfAttachmentRecords int
	// RetryInterval is the period between automatic send passes.
	RetryInterval time.Duration
	// MaximumRetries is how many failed passes a record survives.
	MaximumRetries int
	// Deduplication selects the fields that identify equal reports.
	Deduplication dedup.Strategy
	// SessionID is stamped on records added by this process.
	SessionID string

	// Sessions is notified as records pin and release their session.
	Sessions session.Coordinator
	// Archiver receives records that leave the queue undelivered.
	Archiver archive.Archiver
	// Metrics absorbs queue counters.
	Metrics *metrics.Collector
	// Logger is optional. If nil, no logging is emitted.
	Logger *log.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default queue settings.
func DefaultConfig() Config {
	return Config{
		AutoSend:                         true,
		MaximumNumberOfRecords:           DefaultMaximumNumberOfRecords,
		MaximumNumberOfAttachmentRecords: DefaultMaximumNumberOfAttachmentRecords,
		RetryInterval:                    DefaultRetryInterval,
		MaximumRetries:                   DefaultMaximumRetries,
		Deduplication:                    dedup.None,
	}
}

func (c Config) validate() error {
	if c.MaximumRetries < 1 {
		return fmt.Errorf("%w: maximum retries %d", ErrInvalidConfig, c.MaximumRetries)
	}
	if c.MaximumNumberOfRecords < 0 || c.MaximumNumberOfAttachmentRecords < 0 {
		return fmt.Errorf("%w: record limits must not be negative", ErrInvalidConfig)
	}
	if c.AutoSend && c.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval %s", ErrInvalidConfig, c.RetryInterval)
	}
	return nil
}

// Queue is the durable submission queue. A Queue does nothing until
// Start succeeds, and nothing again after Dispose.
type Queue struct {
	cfg      Config
	store    *record.Store
	provider storage.Provider
	client   submit.Client
	dedup    dedup.Model
	logger   *log.Logger
	stats    statsRecorder

	// ctx is cancelled by Dispose and aborts in-flight submissions.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex // guards lifecycle fields
	enabled   bool
	disposed  bool
	scheduler gocron.Scheduler
	unbind    []func()

	addMu  sync.Mutex // serializes capacity checks with insertion
	sendMu sync.Mutex // one send pass at a time
}

// New creates a disabled queue. Call Start to load persisted records
// and enable it.
func New(cfg Config, provider storage.Provider, client submit.Client) (*Queue, error) {
	if provider == nil || client == nil {
		return nil, fmt.Errorf("%w: storage provider and submission client are required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	store, err := record.NewStore(cfg.MaximumRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:      cfg,
		store:    store,
		provider: provider,
		client:   client,
		dedup:    dedup.Model{Strategy: cfg.Deduplication},
		logger:   cfg.Logger.With("queue"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Enabled reports whether the queue accepts work.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Start starts the storage provider, loads persisted records within
// capacity and, with AutoSend, schedules send passes. Calling Start on
// an enabled queue is a no-op. If the provider fails to start the queue
// stays disabled for good.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return ErrDisposed
	}
	if q.enabled {
		return nil
	}

	if err := q.provider.Start(ctx); err != nil {
		q.cfg.Metrics.IncStorageFailure()
		q.logger.Error("storage provider failed to start", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	records, err := q.provider.Get(ctx)
	if err != nil {
		q.cfg.Metrics.IncStorageFailure()
		q.logger.Warn("failed to load persisted records", map[string]any{"error": err.Error()})
	}
	q.load(ctx, records)
	q.enabled = true
	q.logger.Info("queue started", map[string]any{"records": q.store.Count()})

	if q.cfg.AutoSend {
		if err := q.scheduleLocked(); err != nil {
			q.logger.Error("auto send not scheduled", map[string]any{"error": err.Error()})
		}
	}
	q.publish()
	return nil
}

// load inserts recovered records, keeping the newest of each kind
// within capacity. Records that do not fit are deleted from storage.
func (q *Queue) load(ctx context.Context, records []*types.Record) {
	limits := q.limits()
	kept := make([]*types.Record, 0, len(records))
	var overflow []*types.Record

	counts := make(map[types.RecordKind]int, 2)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		limit := limits[rec.Kind]
		if limit > 0 && counts[rec.Kind] >= limit {
			overflow = append(overflow, rec)
			continue
		}
		counts[rec.Kind]++
		kept = append(kept, rec)
	}
	// restore oldest-first order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	evicted := q.store.DropOverLimits(limits, counts)
	evicted = append(evicted, overflow...)
	q.discard(ctx, archive.ReasonEvicted, evicted)
	q.stats.incEvicted(len(evicted))

	q.store.Load(kept)
	for _, rec := range kept {
		q.pin(rec)
	}
}

func (q *Queue) scheduleLocked() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(q.cfg.RetryInterval),
		gocron.NewTask(func() { q.Send(q.ctx) }),
		gocron.WithName("burrow-auto-send"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("create auto send job: %w", err)
	}
	s.Start()
	q.scheduler = s
	return nil
}

func (q *Queue) limits() map[types.RecordKind]int {
	return map[types.RecordKind]int{
		types.RecordKindReport:     q.cfg.MaximumNumberOfRecords,
		types.RecordKindAttachment: q.cfg.MaximumNumberOfAttachmentRecords,
	}
}

// Add stores a report for delivery and returns its record. A report
// equal to a pending one under the deduplication strategy increases
// that record's count instead. Add returns nil when the queue is
// disabled or the record could not be persisted.
func (q *Queue) Add(ctx context.Context, report *types.Report, attachments []types.Attachment) *types.Record {
	rec, _ := q.add(ctx, report, attachments, false)
	return rec
}

// add stores report. An owned record enters the store already locked,
// so no send pass can pick it up before its owner releases it.
func (q *Queue) add(ctx context.Context, report *types.Report, attachments []types.Attachment, owned bool) (*types.Record, bool) {
	if !q.Enabled() {
		return nil, false
	}
	rec := types.NewReportRecord(report, attachments, q.dedup.Key(report), q.cfg.SessionID, q.cfg.Now())
	if owned {
		rec.Lock()
	}
	return q.insert(ctx, rec)
}

// AddAttachment stores an attachment to upload against rxid.
func (q *Queue) AddAttachment(ctx context.Context, rxid string, attachment types.Attachment, sessionID string) *types.Record {
	if !q.Enabled() {
		return nil
	}
	if sessionID == "" {
		sessionID = q.cfg.SessionID
	}
	rec, _ := q.insert(ctx, types.NewAttachmentRecord(rxid, attachment, sessionID, q.cfg.Now()))
	return rec
}

func (q *Queue) insert(ctx context.Context, rec *types.Record) (*types.Record, bool) {
	q.addMu.Lock()
	defer q.addMu.Unlock()
	defer q.publish()

	if existing := q.store.FindDuplicate(rec); existing != nil {
		stored, merged := q.store.Add(rec)
		if merged {
			q.stats.incMerged()
			q.persist(ctx, stored)
			return stored, true
		}
		// the duplicate was locked in between and rec went in as new
		return q.inserted(ctx, stored)
	}

	evicted := q.store.DropOverLimits(q.limits(), map[types.RecordKind]int{rec.Kind: 1})
	q.discard(ctx, archive.ReasonEvicted, evicted)
	q.stats.incEvicted(len(evicted))

	if err := q.provider.Add(ctx, rec); err != nil {
		q.cfg.Metrics.IncStorageFailure()
		q.logger.Warn("failed to persist record", map[string]any{
			"record_id": rec.ID,
			"error":     err.Error(),
		})
		return nil, false
	}
	stored, merged := q.store.Add(rec)
	if merged {
		q.stats.incMerged()
		_ = q.provider.Delete(ctx, rec)
		q.persist(ctx, stored)
		return stored, true
	}
	q.stats.incAdded()
	q.pin(stored)
	return stored, false
}

// inserted finishes an insertion that skipped the capacity check.
func (q *Queue) inserted(ctx context.Context, rec *types.Record) (*types.Record, bool) {
	q.persist(ctx, rec)
	q.stats.incAdded()
	q.pin(rec)
	return rec, false
}

// persist writes the current state of rec, logging failures.
func (q *Queue) persist(ctx context.Context, rec *types.Record) {
	if err := q.provider.Add(ctx, rec); err != nil {
		q.cfg.Metrics.IncStorageFailure()
		q.logger.Warn("failed to persist record", map[string]any{
			"record_id": rec.ID,
			"error":     err.Error(),
		})
	}
}

func (q *Queue) pin(rec *types.Record) {
	if q.cfg.Sessions != nil {
		q.cfg.Sessions.Lock(rec.ID, rec.SessionID)
	}
}

// Get returns every held record, bucket by bucket.
func (q *Queue) Get() []*types.Record {
	return q.store.Get()
}

// Count returns the number of held records.
func (q *Queue) Count() int {
	return q.store.Count()
}

// Remove deletes records from memory and storage and releases their
// session pins. It is a no-op on a disabled queue.
func (q *Queue) Remove(ctx context.Context, records ...*types.Record) {
	if !q.Enabled() {
		return
	}
	for _, rec := range records {
		q.store.Remove(rec)
	}
	q.release(ctx, records)
	q.publish()
}

// discard releases records that already left the store and archives
// them with reason.
func (q *Queue) discard(ctx context.Context, reason archive.Reason, records []*types.Record) {
	if len(records) == 0 {
		return
	}
	q.release(ctx, records)
	q.archive(ctx, reason, records)
}

// release deletes records from storage and drops their session pins.
func (q *Queue) release(ctx context.Context, records []*types.Record) {
	for _, rec := range records {
		if err := q.provider.Delete(ctx, rec); err != nil {
			q.cfg.Metrics.IncStorageFailure()
			q.logger.Warn("failed to delete record", map[string]any{
				"record_id": rec.ID,
				"error":     err.Error(),
			})
		}
		if q.cfg.Sessions != nil {
			q.cfg.Sessions.Unlock(rec.ID)
		}
	}
}

func (q *Queue) archive(ctx context.Context, reason archive.Reason, records []*types.Record) {
	if q.cfg.Archiver == nil {
		return
	}
	// archiving must outlive a cancelled pass
	ctx = context.WithoutCancel(ctx)
	if err := q.cfg.Archiver.Archive(ctx, reason, records...); err != nil {
		q.cfg.Metrics.IncArchiveFailure()
		q.logger.Warn("failed to archive records", map[string]any{
			"reason":  string(reason),
			"records": len(records),
			"error":   err.Error(),
		})
		return
	}
	for range records {
		q.cfg.Metrics.IncArchived()
	}
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	return q.stats.snapshot(q.store.Count())
}

func (q *Queue) publish() {
	if q.cfg.Metrics == nil {
		return
	}
	s := q.Stats()
	q.cfg.Metrics.AbsorbQueueStats(s.Added, s.Merged, s.Evicted, s.Sent, s.Dropped, s.Flushed, s.Pending, s.SendPasses, s.Failed)
}

// Dispose disables the queue, stops auto send, aborts in-flight
// submissions and detaches event hooks. The storage provider and the
// client stay open; their owner closes them.
func (q *Queue) Dispose() {
	q.mu.Lock()
	q.enabled = false
	q.disposed = true
	scheduler := q.scheduler
	q.scheduler = nil
	unbind := q.unbind
	q.unbind = nil
	q.mu.Unlock()

	q.cancel()
	for _, fn := range unbind {
		fn()
	}
	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			q.logger.Warn("auto send shutdown failed", map[string]any{"error": err.Error()})
		}
	}
}
