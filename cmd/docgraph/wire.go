package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/docgraph/internal/config"
	"github.com/dshills/docgraph/internal/graph"
	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/searcher"
	"github.com/dshills/docgraph/internal/storage"
)

// app holds the wired services every command works with
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	logger zerolog.Logger

	store      *storage.SQLiteStorage
	indexer    *indexer.Indexer
	inferencer *graph.Inferencer
	searcher   *searcher.Searcher
	graph      *graph.Service
}

// newApp loads configuration, sets up logging and opens the store. Cache
// invalidation hooks are registered so every run that changes the
// document set or its references clears the caches built on them.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		level = l
	}
	pretty := cfg.Log.Pretty
	if p, _ := cmd.Flags().GetBool("pretty"); p {
		pretty = true
	}

	lg, err := logger.New(logger.Config{
		Level:   level,
		File:    cfg.Log.File,
		Console: true,
		Pretty:  pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		_ = lg.Close()
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}

	zl := lg.GetZerolog()
	idxLog := zl.With().Str("component", "indexer").Logger()
	srchLog := zl.With().Str("component", "searcher").Logger()
	infLog := zl.With().Str("component", "graph").Logger()

	a := &app{
		cfg:    cfg,
		log:    lg,
		logger: zl.With().Str("component", "cli").Logger(),
		store:  store,
		indexer: indexer.New(store, &indexer.Config{
			BaseDir:     cfg.BaseDir,
			Workers:     cfg.Index.Workers,
			FileTimeout: cfg.Index.FileTimeout,
			Logger:      &idxLog,
		}),
		inferencer: graph.NewInferencer(store, &infLog),
		searcher: searcher.NewSearcher(store, &searcher.Config{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
			CacheSize:    cfg.Search.CacheSize,
			CacheTTL:     cfg.Search.CacheTTL,
			Logger:       &srchLog,
		}),
		graph: graph.NewService(store, cfg.Graph.CacheTTL),
	}

	a.indexer.OnComplete(func(*indexer.Result) {
		a.searcher.InvalidateCache()
		a.graph.Invalidate()
	})
	a.inferencer.OnComplete(func(*graph.RunResult) {
		a.graph.Invalidate()
	})

	return a, nil
}

// invalidate clears every cache derived from the document set
func (a *app) invalidate() {
	a.searcher.InvalidateCache()
	a.graph.Invalidate()
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing database")
	}
	_ = a.log.Close()
}
