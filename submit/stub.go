package submit

import (
	"context"
	"sync"

	"github.com/pithecene-io/burrow/types"
)

// StubClient is a Client for tests. It records every call and answers
// with Result, or with Respond when set.
type StubClient struct {
	mu sync.Mutex

	// Result is returned when Respond is nil. The zero value is Ok.
	Result types.SubmissionResult
	// Respond computes the result per call. n counts calls from 1.
	Respond func(ctx context.Context, n int, report *types.Report, rxid string) types.SubmissionResult

	Reports     []*types.Report
	Attachments []StubAttachmentCall
	calls       int
	closed      bool
}

// StubAttachmentCall records one SendAttachment call.
type StubAttachmentCall struct {
	RXID       string
	Attachment types.Attachment
}

var _ Client = (*StubClient)(nil)

// answer computes the result of call n.
func answer(ctx context.Context, n int, respond func(context.Context, int, *types.Report, string) types.SubmissionResult, result types.SubmissionResult, report *types.Report, rxid string) types.SubmissionResult {
	if respond != nil {
		return respond(ctx, n, report, rxid)
	}
	if result.Status == "" {
		result.Status = types.StatusOk
	}
	return result
}

// Send implements Client.
func (c *StubClient) Send(ctx context.Context, report *types.Report, _ []types.Attachment) types.SubmissionResult {
	c.mu.Lock()
	c.Reports = append(c.Reports, report)
	c.calls++
	n, respond, result := c.calls, c.Respond, c.Result
	c.mu.Unlock()
	return answer(ctx, n, respond, result, report, "")
}

// SendAttachment implements Client.
func (c *StubClient) SendAttachment(ctx context.Context, rxid string, attachment types.Attachment) types.SubmissionResult {
	c.mu.Lock()
	c.Attachments = append(c.Attachments, StubAttachmentCall{RXID: rxid, Attachment: attachment})
	c.calls++
	n, respond, result := c.calls, c.Respond, c.Result
	c.mu.Unlock()
	return answer(ctx, n, respond, result, nil, rxid)
}

// Calls returns the number of Send and SendAttachment calls.
func (c *StubClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *StubClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
