package types

// SubmissionStatus is the outcome of a single submission attempt.
type SubmissionStatus string

// Submission status constants.
const (
	StatusOk            SubmissionStatus = "Ok"
	StatusServerError   SubmissionStatus = "Server Error"
	StatusNetworkError  SubmissionStatus = "Network Error"
	StatusUnknown       SubmissionStatus = "Unknown"
	StatusLimitReached  SubmissionStatus = "Limit reached"
	StatusInvalidToken  SubmissionStatus = "Invalid token"
	StatusUnsupported   SubmissionStatus = "Unsupported"
	StatusReportSkipped SubmissionStatus = "Report skipped"
)

// IsTerminal reports whether a record with this outcome is resolved
// and must leave the queue. All other outcomes are retried.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusOk, StatusUnsupported, StatusReportSkipped:
		return true
	default:
		return false
	}
}

// SubmissionResult is what a submission client returns for one attempt.
type SubmissionResult struct {
	Status SubmissionStatus `json:"status"`
	// Message carries diagnostic detail for non-Ok outcomes.
	Message string `json:"message,omitempty"`
	// RXID is the remote identifier assigned to an accepted report.
	RXID string `json:"rxid,omitempty"`
}

// Ok returns an Ok result.
func Ok(rxid string) SubmissionResult {
	return SubmissionResult{Status: StatusOk, RXID: rxid}
}

// Failed returns a result with the given status and message.
func Failed(status SubmissionStatus, message string) SubmissionResult {
	return SubmissionResult{Status: status, Message: message}
}
