package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/cli/render"
	"github.com/pithecene-io/burrow/types"
)

// RecordDetail is the inspect view of a persisted record.
type RecordDetail struct {
	ID          string           `json:"id"`
	Kind        types.RecordKind `json:"kind"`
	Created     time.Time        `json:"created"`
	Session     string           `json:"session,omitempty"`
	Count       int              `json:"count,omitempty"`
	Hash        string           `json:"hash,omitempty"`
	ReportUUID  string           `json:"report_uuid,omitempty"`
	Message     string           `json:"message,omitempty"`
	Classifiers []string         `json:"classifiers,omitempty"`
	RXID        string           `json:"rxid,omitempty"`
	Attachments []string         `json:"attachments,omitempty"`
}

func detail(rec *types.Record) RecordDetail {
	d := RecordDetail{
		ID:      rec.ID,
		Kind:    rec.Kind,
		Created: rec.Timestamp,
		Session: rec.SessionID,
		RXID:    rec.RXID,
	}
	if rec.Kind == types.RecordKindAttachment {
		if rec.Attachment != nil {
			d.Attachments = []string{attachmentLabel(*rec.Attachment)}
		}
		return d
	}

	d.Count = rec.Count
	d.Hash = rec.Hash
	for _, a := range rec.Attachments {
		d.Attachments = append(d.Attachments, attachmentLabel(a))
	}
	if rec.Report != nil {
		d.ReportUUID = rec.Report.UUID
		d.Message, _ = rec.Report.StringAttribute(types.AttributeErrorMessage)
		d.Classifiers = rec.Report.Classifiers
	}
	return d
}

func attachmentLabel(a types.Attachment) string {
	if a.IsFile() {
		return fmt.Sprintf("%s (%s)", a.Name, a.Path)
	}
	return fmt.Sprintf("%s (%d bytes)", a.Name, len(a.Data))
}

// InspectCommand returns the inspect command with subcommands.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a specific entity",
		Subcommands: []*cli.Command{
			inspectRecordCommand(),
		},
	}
}

func inspectRecordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Inspect a persisted record",
		ArgsUsage: "<record-id>",
		Flags:     DatabaseFlags(),
		Action:    inspectRecordAction,
	}
}

func inspectRecordAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.NArg() < 1 {
		return cli.Exit("record ID required", 1)
	}
	id := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	records, err := readRecords(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read database: %v", err), 1)
	}
	for _, rec := range records {
		if rec.ID == id {
			return r.Render(detail(rec))
		}
	}
	return cli.Exit(fmt.Sprintf("record %q not found", id), 1)
}
