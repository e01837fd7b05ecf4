// Package submit delivers reports and attachments to a remote endpoint.
//
// Clients never return errors: every outcome, including transport
// failure, is a types.SubmissionResult the queue uses to decide between
// removing and retrying a record.
package submit

import (
	"context"
	"os"

	"github.com/pithecene-io/burrow/types"
)

// Client submits reports and attachments.
type Client interface {
	// Send submits a report with its attachments.
	Send(ctx context.Context, report *types.Report, attachments []types.Attachment) types.SubmissionResult
	// SendAttachment uploads one attachment against a previously
	// accepted report.
	SendAttachment(ctx context.Context, rxid string, attachment types.Attachment) types.SubmissionResult
	// Close releases client resources.
	Close() error
}

// attachmentBytes returns the attachment content. ok is false when the
// attachment has no content to deliver, either because it is empty or
// because its file can no longer be read.
func attachmentBytes(a types.Attachment) (data []byte, ok bool) {
	if a.IsFile() {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return a.Data, len(a.Data) > 0
}

// canceled converts a context failure into a result.
func canceled(ctx context.Context) (types.SubmissionResult, bool) {
	if err := ctx.Err(); err != nil {
		return types.Failed(types.StatusNetworkError, err.Error()), true
	}
	return types.SubmissionResult{}, false
}
