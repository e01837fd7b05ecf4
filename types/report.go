package types

// Report is an error report as queued for submission.
type Report struct {
	// UUID identifies the report instance.
	UUID string `msgpack:"uuid" json:"uuid"`
	// Timestamp is the report time in Unix seconds.
	Timestamp int64 `msgpack:"timestamp" json:"timestamp"`
	// Classifiers name the error classes, e.g. the exception type.
	Classifiers []string `msgpack:"classifiers,omitempty" json:"classifiers,omitempty"`
	// Attributes are scalar annotations of the report.
	Attributes map[string]any `msgpack:"attributes,omitempty" json:"attributes,omitempty"`
	// Annotations are structured annotations of the report.
	Annotations map[string]any `msgpack:"annotations,omitempty" json:"annotations,omitempty"`
	// MainThread is the key of the faulting thread in Threads.
	MainThread string `msgpack:"main_thread,omitempty" json:"mainThread,omitempty"`
	// Threads maps thread keys to their call stacks.
	Threads map[string]Thread `msgpack:"threads,omitempty" json:"threads,omitempty"`
}

// Well-known report attribute keys.
const (
	// AttributeFingerprint overrides the computed deduplication key.
	AttributeFingerprint = "_mod_fingerprint"
	// AttributeErrorMessage holds the error message.
	AttributeErrorMessage = "error.message"
)

// Thread is one thread of a report.
type Thread struct {
	Name  string       `msgpack:"name,omitempty" json:"name,omitempty"`
	Fault bool         `msgpack:"fault" json:"fault"`
	Stack []StackFrame `msgpack:"stack,omitempty" json:"stack,omitempty"`
}

// StackFrame is a single call stack frame.
type StackFrame struct {
	Function string `msgpack:"funcName" json:"funcName"`
	Library  string `msgpack:"library,omitempty" json:"library,omitempty"`
	Line     int    `msgpack:"line,omitempty" json:"line,omitempty"`
	Column   int    `msgpack:"column,omitempty" json:"column,omitempty"`
}

// MainStack returns the main thread, if present.
func (r *Report) MainStack() (Thread, bool) {
	if r == nil || r.Threads == nil {
		return Thread{}, false
	}
	t, ok := r.Threads[r.MainThread]
	return t, ok
}

// StringAttribute returns attribute key when it holds a string.
func (r *Report) StringAttribute(key string) (string, bool) {
	if r == nil || r.Attributes == nil {
		return "", false
	}
	v, ok := r.Attributes[key].(string)
	return v, ok
}

// Attachment is a named blob sent alongside a report, either by file
// path or in memory.
type Attachment struct {
	Name string `msgpack:"name" json:"name"`
	// Path is set for file attachments.
	Path string `msgpack:"path,omitempty" json:"path,omitempty"`
	// Data is set for in-memory attachments.
	Data []byte `msgpack:"data,omitempty" json:"data,omitempty"`
}

// IsFile reports whether the attachment refers to a file on disk.
func (a Attachment) IsFile() bool {
	return a.Path != ""
}
