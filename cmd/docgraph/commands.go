package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docgraph/internal/mcp"
	"github.com/dshills/docgraph/internal/searcher"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index every configured root once",
		Long:  "Walk the task, memory and docs roots, upsert every HTML file and print a run summary as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := a.indexer.Index(ctx, a.cfg.RootPaths())
			if err != nil {
				return err
			}

			out := map[string]interface{}{"index": res}
			if infer, _ := cmd.Flags().GetBool("infer"); infer {
				inf, err := a.inferencer.Run(ctx)
				if err != nil {
					return err
				}
				out["infer"] = inf
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Bool("infer", false, "recompute stored references after indexing")
	return cmd
}

func newInferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer",
		Short: "Recompute the stored document references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.inferencer.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			limit, _ := cmd.Flags().GetInt("limit")
			mode, _ := cmd.Flags().GetString("mode")

			resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
				Mode:  searcher.SearchMode(mode),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(w, resp.Results)
			}
			if len(resp.Results) == 0 {
				_, err := fmt.Fprintln(w, "no results")
				return err
			}
			for i, r := range resp.Results {
				if _, err := fmt.Fprintf(w, "%d. %s (%s) rank=%.2f\n   %s\n", i+1, r.Title, r.Path, r.Rank, r.Excerpt); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().String("mode", string(searcher.ModeStrict), "strict (all words) or loose (any word)")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop all but the newest session logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			keep := a.cfg.Retention.KeepSessionLogs
			if cmd.Flags().Changed("keep") {
				keep, _ = cmd.Flags().GetInt("keep")
			}

			removed, err := a.store.PruneSessionLogs(cmd.Context(), keep)
			if err != nil {
				return err
			}
			if removed > 0 {
				a.invalidate()
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"kept": keep, "removed": removed})
		},
	}

	cmd.Flags().Int("keep", 0, "session logs to keep (default retention.keep_session_logs)")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := mcp.NewServer(mcp.Deps{
				Store:      a.store,
				Searcher:   a.searcher,
				Graph:      a.graph,
				Indexer:    a.indexer,
				IndexRoots: a.cfg.RootPaths(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
