package config

import (
	"errors"
	"fmt"
	"time"
)

// Backend and transport names accepted in the config file.
const (
	DatabaseBackendFile   = "file"
	DatabaseBackendBadger = "badger"

	SubmissionHTTP  = "http"
	SubmissionRedis = "redis"

	ArchiveBackendFS = "fs"
	ArchiveBackendS3 = "s3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents a burrow.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	InstanceID  string            `yaml:"instance_id"`
	Database    DatabaseConfig    `yaml:"database"`
	Breadcrumbs BreadcrumbsConfig `yaml:"breadcrumbs"`
	Submission  SubmissionConfig  `yaml:"submission"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

// DatabaseConfig configures the durable queue and its record storage.
// Pointer fields distinguish "unset" from an explicit zero.
type DatabaseConfig struct {
	Enabled                          *bool    `yaml:"enabled"`
	Path                             string   `yaml:"path"`
	Backend                          string   `yaml:"backend"`
	CreateDirectory                  *bool    `yaml:"create_directory"`
	AutoSend                         *bool    `yaml:"auto_send"`
	MaximumNumberOfRecords           *int     `yaml:"maximum_number_of_records"`
	MaximumNumberOfAttachmentRecords *int     `yaml:"maximum_number_of_attachment_records"`
	RetryInterval                    Duration `yaml:"retry_interval"`
	MaximumRetries                   *int     `yaml:"maximum_retries"`
	Deduplication                    string   `yaml:"deduplication"`
}

// BreadcrumbsConfig configures bounded breadcrumb storage.
type BreadcrumbsConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Directory          string `yaml:"directory"`
	MaximumBreadcrumbs int    `yaml:"maximum_breadcrumbs"`
	MaximumTotalSize   int    `yaml:"maximum_total_size"`
}

// SubmissionConfig selects and configures the submission client.
type SubmissionConfig struct {
	Type          string            `yaml:"type"`
	URL           string            `yaml:"url"`
	AttachmentURL string            `yaml:"attachment_url,omitempty"`
	Channel       string            `yaml:"channel,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	Timeout       Duration          `yaml:"timeout,omitempty"`
	Retries       *int              `yaml:"retries,omitempty"`
	RateLimit     float64           `yaml:"rate_limit,omitempty"`
	RateBurst     int               `yaml:"rate_burst,omitempty"`
}

// ArchiveConfig configures the dead-letter archive.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// DatabaseEnabled reports whether the queue should run. It defaults
// to true.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Enabled == nil || *c.Database.Enabled
}

// Validate checks enumerated values. Empty values are accepted and
// resolved to defaults by the caller.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "", DatabaseBackendFile, DatabaseBackendBadger:
	default:
		return fmt.Errorf("%w: database.backend %q (must be file or badger)", ErrInvalidConfig, c.Database.Backend)
	}
	switch c.Submission.Type {
	case "", SubmissionHTTP, SubmissionRedis:
	default:
		return fmt.Errorf("%w: submission.type %q (must be http or redis)", ErrInvalidConfig, c.Submission.Type)
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "", ArchiveBackendFS, ArchiveBackendS3:
		default:
			return fmt.Errorf("%w: archive.backend %q (must be fs or s3)", ErrInvalidConfig, c.Archive.Backend)
		}
	}
	if r := c.Database.MaximumRetries; r != nil && *r < 1 {
		return fmt.Errorf("%w: database.maximum_retries must be at least 1", ErrInvalidConfig)
	}
	if c.Breadcrumbs.MaximumBreadcrumbs < 0 || c.Breadcrumbs.MaximumTotalSize < 0 {
		return fmt.Errorf("%w: breadcrumb limits must not be negative", ErrInvalidConfig)
	}
	return nil
}
