package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigFile is read from the working directory when --config is
// not given
const defaultConfigFile = "docgraph.yaml"

// NewRootCmd creates the root docgraph command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docgraph",
		Short:         "docgraph indexes HTML notes, tasks and session logs",
		Long:          "docgraph indexes a tree of HTML documents into SQLite and serves search, task listings and a reference graph over HTTP and MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./"+defaultConfigFile+" when present)")
	root.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("pretty", false, "human-readable console logs")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newInferCmd(),
		newSearchCmd(),
		newPruneCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)

	return root
}

// configPath returns the --config value, or the default file when it
// exists, or "" for defaults and environment only.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigFile); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return defaultConfigFile
	}
	return ""
}
