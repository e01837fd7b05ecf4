package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/cli/config"
	"github.com/pithecene-io/burrow/cli/render"
	"github.com/pithecene-io/burrow/types"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// RecordSummary is the list view of a persisted record.
type RecordSummary struct {
	ID          string           `json:"id"`
	Kind        types.RecordKind `json:"kind"`
	Created     time.Time        `json:"created"`
	Count       int              `json:"count"`
	Session     string           `json:"session,omitempty"`
	RXID        string           `json:"rxid,omitempty"`
	Attachments int              `json:"attachments"`
}

func summarize(rec *types.Record) RecordSummary {
	s := RecordSummary{
		ID:      rec.ID,
		Kind:    rec.Kind,
		Created: rec.Timestamp,
		Count:   rec.Count,
		Session: rec.SessionID,
		RXID:    rec.RXID,
	}
	switch rec.Kind {
	case types.RecordKindAttachment:
		s.Count = 1
		s.Attachments = 1
	default:
		s.Attachments = len(rec.Attachments)
	}
	return s
}

// ListCommand returns the list command with subcommands.
// List returns thin slices; inspect returns the detail.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List entities (records, archived)",
		Subcommands: []*cli.Command{
			listRecordsCommand(),
			listArchivedCommand(),
		},
	}
}

func listRecordsCommand() *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "List persisted records, oldest first",
		Flags: append(DatabaseFlags(),
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Filter by kind: report, attachment",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to return (0 = no limit)",
				Value: 0,
			},
		),
		Action: listRecordsAction,
	}
}

// readRecords loads persisted records without starting a queue.
func readRecords(ctx context.Context, cfg *config.Config) ([]*types.Record, error) {
	provider := newProvider(cfg, nil, true)
	defer func() { _ = provider.Close() }()

	if err := provider.Start(ctx); err != nil {
		return nil, err
	}
	return provider.Get(ctx)
}

func listRecordsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	kind := types.RecordKind(c.String("kind"))
	switch kind {
	case "", types.RecordKindReport, types.RecordKindAttachment:
	default:
		return cli.Exit(fmt.Sprintf("invalid kind %q (must be report or attachment)", kind), 1)
	}

	records, err := readRecords(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read database: %v", err), 1)
	}

	limit := c.Int("limit")
	results := make([]RecordSummary, 0, len(records))
	for _, rec := range records {
		if kind != "" && rec.Kind != kind {
			continue
		}
		results = append(results, summarize(rec))
		if limit > 0 && len(results) == limit {
			break
		}
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(results) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(results))
	}

	return r.Render(results)
}

func listArchivedCommand() *cli.Command {
	return &cli.Command{
		Name:  "archived",
		Usage: "List records archived without delivery",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:  "reason",
				Usage: "Filter by reason: retries_exhausted, evicted, flushed",
			},
		),
		Action: listArchivedAction,
	}
}

func listArchivedAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	archiver, err := openArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = archiver.Close() }()

	entries, err := archiver.Entries(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read archive: %v", err), 1)
	}

	reason := c.String("reason")
	if reason == "" {
		return r.Render(entries)
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.Reason == reason {
			filtered = append(filtered, e)
		}
	}
	return r.Render(filtered)
}
