package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docgraph/internal/storage"
)

// Build-time variables set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print docgraph version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "docgraph %s (commit: %s, built: %s, sqlite: %s/%s)\n",
				version, commit, buildTime, storage.BuildMode, storage.DriverName)
			return err
		},
	}
}
