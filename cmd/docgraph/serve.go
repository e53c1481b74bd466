package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docgraph/internal/scheduler"
	"github.com/dshills/docgraph/internal/server"
	"github.com/dshills/docgraph/internal/watcher"
	dgerr "github.com/dshills/docgraph/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with scheduled jobs",
		Long:  "Start the HTTP API, the cron scheduler for index, infer and retention jobs, and the file watcher when enabled.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override http.listen (host:port)")
	cmd.Flags().Bool("watch", false, "re-index when files under the roots change")
	cmd.Flags().Bool("no-schedule", false, "do not run scheduled jobs")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		cfg.Watch.Enabled = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	roots := cfg.RootPaths()
	srv, err := server.New(server.Config{
		ListenAddr:   cfg.HTTP.Listen,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		BaseDir:      cfg.BaseDir,
		Roots:        roots,
		IndexRoots:   roots,
	}, server.Deps{
		Store:    a.store,
		Searcher: a.searcher,
		Graph:    a.graph,
		Indexer:  a.indexer,
	})
	if err != nil {
		return err
	}

	if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); !noSchedule {
		sched, err := scheduler.New(scheduler.Config{
			Index:           cfg.Schedule.Index,
			Infer:           cfg.Schedule.Infer,
			Retention:       cfg.Schedule.Retention,
			Roots:           roots,
			KeepSessionLogs: cfg.Retention.KeepSessionLogs,
			OnPrune:         func(int) { a.invalidate() },
		}, a.indexer, a.inferencer, a.store)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if cfg.Watch.Enabled {
		w, err := watcher.New(watcher.Config{
			Roots:    roots,
			Debounce: cfg.Watch.Debounce,
			OnChange: func() { reindex(ctx, a, roots) },
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	return srv.Start(ctx)
}

// reindex runs one index pass for the watcher. A pass already in progress
// will pick the change up, so a rejected run is not an error.
func reindex(ctx context.Context, a *app, roots []string) {
	res, err := a.indexer.Index(ctx, roots)
	switch {
	case err == nil:
		a.logger.Info().Str("run_id", res.RunID).Int("processed", res.Processed).Msg("re-indexed after file changes")
	case dgerr.IsConflict(err):
		a.logger.Info().Msg("index run in progress, change will be picked up")
	case errors.Is(err, context.Canceled):
		// shutting down
	default:
		a.logger.Error().Err(err).Msg("re-index after file changes failed")
	}
}
