// Package events carries the host's report lifecycle notifications to
// subscribers such as the durable queue.
package events

import (
	"sync"

	"github.com/pithecene-io/burrow/types"
)

// BeforeSendFunc observes a report about to be submitted by the host.
type BeforeSendFunc func(report *types.Report, attachments []types.Attachment)

// AfterSendFunc observes the outcome of a host submission.
type AfterSendFunc func(report *types.Report, attachments []types.Attachment, result types.SubmissionResult)

type subscription[F any] struct {
	id uint64
	fn F
}

// ReportEvents is a typed observer list. Handlers run synchronously on
// the emitting goroutine, in subscription order.
type ReportEvents struct {
	mu     sync.Mutex
	nextID uint64
	before []subscription[BeforeSendFunc]
	after  []subscription[AfterSendFunc]
}

// New creates an empty observer list.
func New() *ReportEvents {
	return &ReportEvents{}
}

// OnBeforeSend subscribes fn and returns its unsubscribe function.
func (e *ReportEvents) OnBeforeSend(fn BeforeSendFunc) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.before = append(e.before, subscription[BeforeSendFunc]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.before = without(e.before, id)
	}
}

// OnAfterSend subscribes fn and returns its unsubscribe function.
func (e *ReportEvents) OnAfterSend(fn AfterSendFunc) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.after = append(e.after, subscription[AfterSendFunc]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.after = without(e.after, id)
	}
}

// EmitBeforeSend notifies before-send subscribers.
func (e *ReportEvents) EmitBeforeSend(report *types.Report, attachments []types.Attachment) {
	e.mu.Lock()
	subs := append([]subscription[BeforeSendFunc](nil), e.before...)
	e.mu.Unlock()
	for _, s := range subs {
		s.fn(report, attachments)
	}
}

// EmitAfterSend notifies after-send subscribers.
func (e *ReportEvents) EmitAfterSend(report *types.Report, attachments []types.Attachment, result types.SubmissionResult) {
	e.mu.Lock()
	subs := append([]subscription[AfterSendFunc](nil), e.after...)
	e.mu.Unlock()
	for _, s := range subs {
		s.fn(report, attachments, result)
	}
}

func without[F any](subs []subscription[F], id uint64) []subscription[F] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
