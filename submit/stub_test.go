package submit_test

import (
	"context"
	"testing"

	"github.com/pithecene-io/burrow/submit"
	"github.com/pithecene-io/burrow/types"
)

func TestStubClient(t *testing.T) {
	c := &submit.StubClient{}
	if got := c.Send(t.Context(), testReport(), nil).Status; got != types.StatusOk {
		t.Errorf("default status = %q, want Ok", got)
	}

	c.Respond = func(_ context.Context, n int, _ *types.Report, rxid string) types.SubmissionResult {
		if rxid != "" {
			return types.Failed(types.StatusUnsupported, "")
		}
		return types.Failed(types.StatusServerError, "")
	}
	if got := c.Send(t.Context(), testReport(), nil).Status; got != types.StatusServerError {
		t.Errorf("status = %q", got)
	}
	if got := c.SendAttachment(t.Context(), "rx", types.Attachment{}).Status; got != types.StatusUnsupported {
		t.Errorf("attachment status = %q", got)
	}
	if c.Calls() != 3 || len(c.Reports) != 2 || len(c.Attachments) != 1 {
		t.Errorf("calls = %d reports = %d attachments = %d", c.Calls(), len(c.Reports), len(c.Attachments))
	}
	_ = c.Close()
	if !c.Closed() {
		t.Error("Closed() = false after Close")
	}
}
