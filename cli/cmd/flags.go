// Package cmd provides CLI commands for the burrow binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// ConfigFlag points at a burrow.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to burrow.yaml",
		EnvVars: []string{"BURROW_CONFIG"},
	}

	// PathFlag overrides database.path.
	PathFlag = &cli.StringFlag{
		Name:  "path",
		Usage: "Database directory (overrides database.path)",
	}

	// BackendFlag overrides database.backend.
	BackendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "Database backend: file or badger (overrides database.backend)",
	}
)

// ReadOnlyFlags returns the output flags shared by every command.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}

// DatabaseFlags returns the output flags plus the flags that locate
// the database.
func DatabaseFlags() []cli.Flag {
	return append(ReadOnlyFlags(),
		ConfigFlag,
		PathFlag,
		BackendFlag,
	)
}
