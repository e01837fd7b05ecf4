package queue

import (
	"context"

	"github.com/pithecene-io/burrow/archive"
	"github.com/pithecene-io/burrow/types"
)

// Send runs one send pass. Buckets are visited from 0 upward and each
// bucket's records in order, one submission at a time. The first
// non-terminal outcome escalates the whole bucket and ends the pass;
// records escalated past the last bucket are dropped. Locked records
// are skipped. Cancelling ctx, or disposing the queue, stops the pass
// without escalation.
func (q *Queue) Send(ctx context.Context) {
	if !q.Enabled() {
		return
	}
	ctx, cancel := q.bound(ctx)
	defer cancel()

	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	defer q.publish()
	defer q.stats.incPasses()

	for i := 0; i < q.store.BucketCount(); i++ {
		for _, rec := range q.store.Bucket(i) {
			if ctx.Err() != nil {
				return
			}
			result, attempted := q.attempt(ctx, rec)
			if !attempted || result.Status.IsTerminal() {
				continue
			}
			if ctx.Err() != nil {
				return
			}

			q.stats.incFailed()
			q.logger.Debug("submission failed, escalating bucket", map[string]any{
				"record_id": rec.ID,
				"bucket":    i,
				"status":    string(result.Status),
				"message":   result.Message,
			})
			dropped := q.store.IncreaseBucket(i)
			if len(dropped) > 0 {
				q.logger.Warn("records exhausted their retries", map[string]any{"records": len(dropped)})
				q.discard(ctx, archive.ReasonRetriesExhausted, dropped)
				q.stats.incDropped(len(dropped))
			}
			return
		}
	}
}

// attempt submits rec if it can be locked. A terminal outcome removes
// the record before it is unlocked.
func (q *Queue) attempt(ctx context.Context, rec *types.Record) (types.SubmissionResult, bool) {
	if !rec.Lock() {
		return types.SubmissionResult{}, false
	}
	defer rec.Unlock()

	var result types.SubmissionResult
	switch rec.Kind {
	case types.RecordKindAttachment:
		if rec.Attachment == nil {
			result = types.Failed(types.StatusReportSkipped, "attachment record without attachment")
			break
		}
		result = q.client.SendAttachment(ctx, rec.RXID, *rec.Attachment)
	default:
		result = q.client.Send(ctx, rec.Report, rec.Attachments)
	}
	q.cfg.Metrics.IncSubmission(string(result.Status))

	if result.Status.IsTerminal() {
		q.stats.incSent()
		q.store.Remove(rec)
		q.release(ctx, []*types.Record{rec})
	}
	return result, true
}

// Flush runs a send pass, then discards every record created before
// the flush started, delivered or not.
func (q *Queue) Flush(ctx context.Context) {
	if !q.Enabled() {
		return
	}
	start := q.cfg.Now()
	q.Send(ctx)

	var stale []*types.Record
	for _, rec := range q.store.Get() {
		if rec.Timestamp.After(start) {
			continue
		}
		if q.store.Remove(rec) {
			stale = append(stale, rec)
		}
	}
	q.discard(ctx, archive.ReasonFlushed, stale)
	q.stats.incFlushed(len(stale))
	q.publish()
}

// bound derives a context cancelled by either ctx or Dispose.
func (q *Queue) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(q.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
