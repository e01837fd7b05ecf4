package types

// BreadcrumbType categorizes a breadcrumb.
type BreadcrumbType string

// Breadcrumb type constants.
const (
	BreadcrumbManual        BreadcrumbType = "manual"
	BreadcrumbLog           BreadcrumbType = "log"
	BreadcrumbNavigation    BreadcrumbType = "navigation"
	BreadcrumbHTTP          BreadcrumbType = "http"
	BreadcrumbSystem        BreadcrumbType = "system"
	BreadcrumbUser          BreadcrumbType = "user"
	BreadcrumbConfiguration BreadcrumbType = "configuration"
)

// BreadcrumbLevel is a breadcrumb severity.
type BreadcrumbLevel string

// Breadcrumb level constants.
const (
	BreadcrumbDebug   BreadcrumbLevel = "debug"
	BreadcrumbInfo    BreadcrumbLevel = "info"
	BreadcrumbWarning BreadcrumbLevel = "warning"
	BreadcrumbError   BreadcrumbLevel = "error"
	BreadcrumbFatal   BreadcrumbLevel = "fatal"
)

// RawBreadcrumb is a breadcrumb as supplied by the caller.
type RawBreadcrumb struct {
	Message    string
	Type       BreadcrumbType
	Level      BreadcrumbLevel
	Attributes map[string]any
}

// Breadcrumb is a stored breadcrumb entry, one JSON line per entry.
type Breadcrumb struct {
	ID int64 `json:"id"`
	// Timestamp is in Unix milliseconds.
	Timestamp  int64           `json:"timestamp"`
	Message    string          `json:"message"`
	Type       BreadcrumbType  `json:"type"`
	Level      BreadcrumbLevel `json:"level"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}
