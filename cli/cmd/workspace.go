package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/archive"
	"github.com/pithecene-io/burrow/cli/config"
	"github.com/pithecene-io/burrow/dedup"
	"github.com/pithecene-io/burrow/log"
	"github.com/pithecene-io/burrow/metrics"
	"github.com/pithecene-io/burrow/queue"
	"github.com/pithecene-io/burrow/session"
	"github.com/pithecene-io/burrow/storage"
	"github.com/pithecene-io/burrow/submit"
)

// defaultInstanceID names the CLI process when the config does not.
const defaultInstanceID = "burrow-cli"

// errNoDatabasePath is returned when neither --path nor database.path is set.
var errNoDatabasePath = errors.New("database path is required: set --path or database.path")

// loadConfig reads --config (if any) and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("path") {
		cfg.Database.Path = c.String("path")
	}
	if c.IsSet("backend") {
		cfg.Database.Backend = c.String("backend")
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, errNoDatabasePath
	}
	return cfg, nil
}

// newProvider builds the record storage named by cfg. Read-only
// callers never create the database directory.
func newProvider(cfg *config.Config, logger *log.Logger, readOnly bool) storage.Provider {
	db := cfg.Database
	switch db.Backend {
	case config.DatabaseBackendBadger:
		bc := storage.DefaultBadgerConfig(db.Path)
		bc.Logger = logger
		return storage.NewBadgerProvider(bc)
	default:
		return storage.NewFileProvider(storage.FileConfig{
			Directory:       db.Path,
			CreateDirectory: !readOnly && boolOr(db.CreateDirectory, true),
			Logger:          logger,
		})
	}
}

// newClient builds the submission client named by cfg.
func newClient(cfg *config.Config) (submit.Client, error) {
	s := cfg.Submission
	switch s.Type {
	case config.SubmissionRedis:
		client, err := submit.NewRedisClient(submit.RedisConfig{
			URL:     s.URL,
			Channel: s.Channel,
			Timeout: s.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		hc := submit.DefaultHTTPConfig(s.URL)
		hc.AttachmentURL = s.AttachmentURL
		hc.Headers = s.Headers
		if s.Timeout.Duration > 0 {
			hc.Timeout = s.Timeout.Duration
		}
		if s.Retries != nil {
			hc.Retries = *s.Retries
		}
		hc.RateLimit = s.RateLimit
		hc.RateBurst = s.RateBurst
		client, err := submit.NewHTTPClient(hc)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// newArchiver builds the dead-letter archive. It returns nil when the
// archive is disabled.
func newArchiver(ctx context.Context, cfg *config.Config) (*archive.LodeArchiver, error) {
	a := cfg.Archive
	if !a.Enabled {
		return nil, nil
	}
	switch a.Backend {
	case config.ArchiveBackendS3:
		bucket, prefix := archive.ParseS3Path(a.Path)
		return archive.NewS3Archiver(ctx, a.Dataset, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       a.Region,
			Endpoint:     a.Endpoint,
			UsePathStyle: a.S3PathStyle,
		})
	default:
		if a.Path == "" {
			return nil, fmt.Errorf("%w: archive.path is required for the fs backend", config.ErrInvalidConfig)
		}
		return archive.NewFSArchiver(a.Dataset, a.Path)
	}
}

// openArchive loads --config and opens its archive for reading.
func openArchive(c *cli.Context) (*archive.LodeArchiver, error) {
	path := c.String("config")
	if path == "" {
		return nil, errors.New("--config is required to locate the archive")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	archiver, err := newArchiver(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if archiver == nil {
		return nil, errors.New("archive is not enabled in config")
	}
	return archiver, nil
}

// queueConfig maps the database section onto queue settings. The CLI
// drives send passes itself unless autoSend is set.
func queueConfig(cfg *config.Config, autoSend bool) (queue.Config, error) {
	db := cfg.Database
	qc := queue.DefaultConfig()
	qc.AutoSend = autoSend
	if db.MaximumNumberOfRecords != nil {
		qc.MaximumNumberOfRecords = *db.MaximumNumberOfRecords
	}
	if db.MaximumNumberOfAttachmentRecords != nil {
		qc.MaximumNumberOfAttachmentRecords = *db.MaximumNumberOfAttachmentRecords
	}
	if db.MaximumRetries != nil {
		qc.MaximumRetries = *db.MaximumRetries
	}
	if db.RetryInterval.Duration > 0 {
		qc.RetryInterval = db.RetryInterval.Duration
	}
	if db.Deduplication != "" {
		strategy, err := dedup.ParseStrategy(db.Deduplication)
		if err != nil {
			return queue.Config{}, err
		}
		qc.Deduplication = strategy
	}
	return qc, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func submissionType(cfg *config.Config) string {
	if cfg.Submission.Type == "" {
		return config.SubmissionHTTP
	}
	return cfg.Submission.Type
}

func databaseBackend(cfg *config.Config) string {
	if cfg.Database.Backend == "" {
		return config.DatabaseBackendFile
	}
	return cfg.Database.Backend
}

// workspace is a started queue together with everything it owns.
type workspace struct {
	cfg      *config.Config
	logger   *log.Logger
	metrics  *metrics.Collector
	provider storage.Provider
	client   submit.Client
	archiver *archive.LodeArchiver
	sessions *session.Registry
	queue    *queue.Queue
}

// openWorkspace wires the configured storage, client and archive into
// a queue and starts it.
func openWorkspace(ctx context.Context, cfg *config.Config, autoSend bool) (*workspace, error) {
	if !cfg.DatabaseEnabled() {
		return nil, errors.New("database is disabled in config")
	}

	qc, err := queueConfig(cfg, autoSend)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		cfg:      cfg,
		logger:   log.NewLogger(log.Meta{InstanceID: cfg.InstanceID}),
		metrics:  metrics.NewCollector(cfg.InstanceID, databaseBackend(cfg), submissionType(cfg)),
		sessions: session.NewRegistry(),
	}
	ws.provider = newProvider(cfg, ws.logger.With("storage"), false)

	ws.client, err = newClient(cfg)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to create submission client: %w", err)
	}

	ws.archiver, err = newArchiver(ctx, cfg)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	if ws.archiver != nil {
		qc.Archiver = ws.archiver
	}
	qc.Metrics = ws.metrics
	qc.Logger = ws.logger.With("queue")
	qc.Sessions = ws.sessions

	ws.queue, err = queue.New(qc, ws.provider, ws.client)
	if err != nil {
		ws.Close()
		return nil, err
	}
	if err := ws.queue.Start(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// response summarizes the queue after a pass that started with before
// records.
func (w *workspace) response(before int) PassResponse {
	return passResponse(before, w.queue.Stats(), w.metrics.Snapshot(), w.sessions.Sessions())
}

// Close disposes the queue and releases everything it used.
func (w *workspace) Close() {
	if w.queue != nil {
		w.queue.Dispose()
	}
	if w.client != nil {
		if err := w.client.Close(); err != nil {
			w.logger.Warn("submission client close failed", map[string]any{"error": err.Error()})
		}
	}
	if w.provider != nil {
		if err := w.provider.Close(); err != nil {
			w.logger.Warn("storage close failed", map[string]any{"error": err.Error()})
		}
	}
	if w.archiver != nil {
		if err := w.archiver.Close(); err != nil {
			w.logger.Warn("archive close failed", map[string]any{"error": err.Error()})
		}
	}
	_ = w.logger.Sync()
}
