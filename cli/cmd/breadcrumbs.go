package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/breadcrumbs"
	"github.com/pithecene-io/burrow/cli/config"
	"github.com/pithecene-io/burrow/cli/render"
	"github.com/pithecene-io/burrow/types"
)

// BreadcrumbFile is one live breadcrumb file.
type BreadcrumbFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Size    int64  `json:"size"`
}

// BreadcrumbsCommand returns the breadcrumbs command.
func BreadcrumbsCommand() *cli.Command {
	return &cli.Command{
		Name:  "breadcrumbs",
		Usage: "Show the breadcrumb files a report would attach",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Breadcrumb directory (overrides breadcrumbs.directory)",
			},
			&cli.BoolFlag{
				Name:  "entries",
				Usage: "Print the breadcrumb entries instead of the files",
			},
		),
		Action: breadcrumbsAction,
	}
}

func breadcrumbsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	dir := c.String("dir")
	if dir == "" && c.String("config") != "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		dir = cfg.Breadcrumbs.Directory
	}
	if dir == "" {
		return cli.Exit("breadcrumb directory required: set --dir or breadcrumbs.directory", 1)
	}

	attachments, err := breadcrumbs.SessionAttachments(dir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read breadcrumbs: %v", err), 1)
	}

	if c.Bool("entries") {
		var entries []types.Breadcrumb
		for _, a := range attachments {
			read, err := readBreadcrumbs(a.Path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("failed to read %s: %v", a.Path, err), 1)
			}
			entries = append(entries, read...)
		}
		return r.Render(entries)
	}

	files := make([]BreadcrumbFile, 0, len(attachments))
	for _, a := range attachments {
		f := BreadcrumbFile{Name: a.Name, Path: a.Path}
		if info, err := os.Stat(a.Path); err == nil {
			f.Size = info.Size()
		}
		if entries, err := readBreadcrumbs(a.Path); err == nil {
			f.Entries = len(entries)
		}
		files = append(files, f)
	}
	return r.Render(files)
}

// readBreadcrumbs parses one breadcrumb file. Lines that do not decode
// are skipped; the writer may have been interrupted mid-line.
func readBreadcrumbs(path string) ([]types.Breadcrumb, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []types.Breadcrumb
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var b types.Breadcrumb
		if err := json.Unmarshal(line, &b); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, scanner.Err()
}
