package queue

import (
	"github.com/pithecene-io/burrow/events"
	"github.com/pithecene-io/burrow/types"
)

// Bind subscribes the queue to the host's report lifecycle. Before a
// report is sent it is stored locked, so the retry loop leaves it to
// the host's own submission. After the send a terminal outcome removes
// the record while it is still locked; any other outcome unlocks it
// for the retry loop. Dispose detaches the hooks.
func (q *Queue) Bind(ev *events.ReportEvents) {
	before := ev.OnBeforeSend(func(report *types.Report, attachments []types.Attachment) {
		q.add(q.ctx, report, attachments, true)
	})
	after := ev.OnAfterSend(func(report *types.Report, _ []types.Attachment, result types.SubmissionResult) {
		rec := q.store.Find(func(r *types.Record) bool {
			return r.Kind == types.RecordKindReport && sameReport(r.Report, report)
		})
		if rec == nil {
			return
		}
		if !result.Status.IsTerminal() {
			rec.Unlock()
			return
		}
		q.stats.incSent()
		q.Remove(q.ctx, rec)
	})

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		before()
		after()
		return
	}
	q.unbind = append(q.unbind, before, after)
}

func sameReport(a, b *types.Report) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.UUID != "" && a.UUID == b.UUID
}
