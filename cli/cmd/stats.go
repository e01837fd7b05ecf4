package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/archive"
	"github.com/pithecene-io/burrow/cli/render"
	"github.com/pithecene-io/burrow/types"
)

// DatabaseStats aggregates the persisted records.
type DatabaseStats struct {
	Records           int        `json:"records"`
	ReportRecords     int        `json:"report_records"`
	AttachmentRecords int        `json:"attachment_records"`
	Reports           int        `json:"reports"`
	Sessions          int        `json:"sessions"`
	Oldest            *time.Time `json:"oldest,omitempty"`
	Newest            *time.Time `json:"newest,omitempty"`
}

func databaseStats(records []*types.Record) DatabaseStats {
	s := DatabaseStats{Records: len(records)}
	sessions := make(map[string]struct{})
	for _, rec := range records {
		switch rec.Kind {
		case types.RecordKindAttachment:
			s.AttachmentRecords++
		default:
			s.ReportRecords++
			s.Reports += max(rec.Count, 1)
		}
		if rec.SessionID != "" {
			sessions[rec.SessionID] = struct{}{}
		}
		ts := rec.Timestamp
		if s.Oldest == nil || ts.Before(*s.Oldest) {
			s.Oldest = &ts
		}
		if s.Newest == nil || ts.After(*s.Newest) {
			s.Newest = &ts
		}
	}
	s.Sessions = len(sessions)
	return s
}

// ArchiveStats counts archived records by reason.
type ArchiveStats struct {
	Entries          int `json:"entries"`
	Reports          int `json:"reports"`
	RetriesExhausted int `json:"retries_exhausted"`
	Evicted          int `json:"evicted"`
	Flushed          int `json:"flushed"`
}

func archiveStats(entries []archive.Entry) ArchiveStats {
	s := ArchiveStats{Entries: len(entries)}
	for _, e := range entries {
		if e.Kind == string(types.RecordKindReport) {
			s.Reports += max(e.Count, 1)
		}
		switch archive.Reason(e.Reason) {
		case archive.ReasonRetriesExhausted:
			s.RetriesExhausted++
		case archive.ReasonEvicted:
			s.Evicted++
		case archive.ReasonFlushed:
			s.Flushed++
		}
	}
	return s
}

// StatsCommand returns the stats command with subcommands.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate statistics",
		Subcommands: []*cli.Command{
			statsDatabaseCommand(),
			statsArchiveCommand(),
		},
	}
}

func statsDatabaseCommand() *cli.Command {
	return &cli.Command{
		Name:   "database",
		Usage:  "Show persisted record statistics",
		Flags:  DatabaseFlags(),
		Action: statsDatabaseAction,
	}
}

func statsDatabaseAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	records, err := readRecords(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read database: %v", err), 1)
	}
	return r.Render(databaseStats(records))
}

func statsArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:   "archive",
		Usage:  "Show dead-letter archive statistics",
		Flags:  append(ReadOnlyFlags(), ConfigFlag),
		Action: statsArchiveAction,
	}
}

func statsArchiveAction(c *cli.Context) error {
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
	return r.Render(archiveStats(entries))
}
