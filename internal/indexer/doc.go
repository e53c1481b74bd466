// Package indexer coordinates the end-to-end indexing pipeline for HTML
// document trees.
//
// # Basic Usage
//
//	idx := indexer.New(store, &indexer.Config{BaseDir: cfg.BaseDir})
//	res, err := idx.Index(ctx, cfg.RootPaths())
//	if err != nil {
//	    // cancelled, database lost, or ErrIndexInProgress
//	}
//	for _, f := range res.Failures {
//	    log.Printf("skipped %s: %s", f.Path, f.Error)
//	}
//
// # Pipeline
//
// For each file the walker yields:
//
//  1. Read and parse the HTML (title, text, meta tags)
//  2. Classify by path: task, memory or documentation
//  3. In one transaction: upsert the Document, get-or-create its tags,
//     upsert the Task for task files, append new Memories for session logs
//
// Every run re-reads every file. Documents are keyed by their path relative
// to Config.BaseDir, so a re-run updates rows in place.
//
// # Task Status
//
// An explicit, valid task-status meta tag wins. Otherwise the directory
// name decides (active-tasks, pending-tasks, resolved-tasks or completed,
// archived), and a task with no hint is ACTIVE.
//
// # Failures
//
// A file that cannot be read or parsed, or that exceeds Config.FileTimeout,
// is recorded in Result.Failures and the run moves on. Only cancellation and
// connection-level database errors abort a run.
//
// # Concurrency
//
// Files are processed one at a time unless Config.Workers is above one, in
// which case an errgroup bounds the number in flight. An IndexLock rejects
// overlapping runs with ErrIndexInProgress.
package indexer
