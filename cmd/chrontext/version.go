package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chrontext/chrontext/pkg/models"
)

// Version, GitCommit, and BuildDate are set via -ldflags at build time,
// same as the teacher's cmd/canonic.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVersion()
		},
	}
}

func (c *CLI) runVersion() error {
	info := models.VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if c.jsonOutput {
		return c.outputJSON(info)
	}
	c.println("chrontext")
	c.printf("  Version:    %s\n", info.Version)
	c.printf("  Git Commit: %s\n", info.GitCommit)
	c.printf("  Build Date: %s\n", info.BuildDate)
	c.printf("  Go Version: %s\n", info.GoVersion)
	c.printf("  OS/Arch:    %s/%s\n", info.OS, info.Arch)
	return nil
}
