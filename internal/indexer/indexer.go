package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docgraph/internal/chunker"
	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/parser"
	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/internal/walker"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// DefaultFileTimeout bounds the work spent on a single file
const DefaultFileTimeout = 30 * time.Second

// ErrIndexInProgress is returned when another run holds the index lock
var ErrIndexInProgress = errors.New("index run already in progress")

// statusDirs maps document key substrings to the status they imply,
// checked in order.
var statusDirs = []struct {
	fragment string
	status   types.TaskStatus
}{
	{"active-tasks", types.StatusActive},
	{"pending-tasks", types.StatusPending},
	{"resolved-tasks", types.StatusResolved},
	{"completed", types.StatusResolved},
	{"archived", types.StatusArchived},
}

// Indexer coordinates the indexing pipeline: walk -> parse -> split -> store
type Indexer struct {
	parser  *parser.Parser
	chunker *chunker.Chunker
	walker  *walker.Walker
	storage storage.Storage

	baseDir     string
	workers     int
	fileTimeout time.Duration

	lock   IndexLock
	logger zerolog.Logger

	hooksMu sync.Mutex
	hooks   []func(*Result)

	retry storage.RetryConfig

	// readFile is swapped in tests to simulate slow reads
	readFile func(string) ([]byte, error)
}

// Config contains configuration for the indexer
type Config struct {
	BaseDir     string          // Document keys are relative to this directory
	Workers     int             // Concurrent files; 1 (default) is sequential
	FileTimeout time.Duration   // Per-file budget (default: 30s)
	Logger      *zerolog.Logger // Optional; defaults to the global logger
}

// Result summarizes one indexing run
type Result struct {
	RunID         string          `json:"run_id"`
	Processed     int             `json:"processed"`
	Failures      []types.Failure `json:"failures"`
	MemoriesAdded int             `json:"memories_added"`
	Duration      time.Duration   `json:"duration"`
}

// New creates a new Indexer instance
func New(store storage.Storage, cfg *Config) *Indexer {
	if cfg == nil {
		cfg = &Config{}
	}

	idx := &Indexer{
		parser:      parser.New(),
		chunker:     chunker.New(),
		storage:     store,
		baseDir:     cfg.BaseDir,
		workers:     cfg.Workers,
		fileTimeout: cfg.FileTimeout,
		logger:      logger.Component("indexer"),
		retry:       storage.DefaultRetryConfig(),
		readFile:    os.ReadFile,
	}
	if cfg.Logger != nil {
		idx.logger = *cfg.Logger
	}
	if idx.baseDir == "" {
		idx.baseDir = "."
	}
	if abs, err := filepath.Abs(idx.baseDir); err == nil {
		idx.baseDir = abs
	}
	if idx.workers <= 0 {
		idx.workers = 1
	}
	if idx.fileTimeout <= 0 {
		idx.fileTimeout = DefaultFileTimeout
	}
	idx.walker = walker.New(&idx.logger)
	return idx
}

// OnComplete registers fn to run after every successful run, e.g. to purge
// caches that depend on the document set.
func (idx *Indexer) OnComplete(fn func(*Result)) {
	idx.hooksMu.Lock()
	defer idx.hooksMu.Unlock()
	idx.hooks = append(idx.hooks, fn)
}

// Running reports whether a run currently holds the index lock.
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Index walks roots and upserts every HTML file found. One bad file never
// aborts the run: it is recorded in Result.Failures. The run is aborted,
// returning the partial result with an error, only when ctx is cancelled or
// the database itself becomes unusable.
func (idx *Indexer) Index(ctx context.Context, roots []string) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, errConflict()
	}
	defer idx.lock.Release()

	return idx.run(ctx, roots)
}

// Start takes the index lock before returning and then runs Index in the
// background. A conflicting run is reported to the caller as
// ErrIndexInProgress. done, when not nil, receives the outcome.
func (idx *Indexer) Start(ctx context.Context, roots []string, done func(*Result, error)) error {
	if !idx.lock.TryAcquire() {
		return errConflict()
	}

	go func() {
		defer idx.lock.Release()
		res, err := idx.run(ctx, roots)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

func errConflict() error {
	return dgerr.Wrap(ErrIndexInProgress, dgerr.CodeIndexRunConflict, "index run rejected")
}

// run performs one index run. The caller holds the index lock.
func (idx *Indexer) run(ctx context.Context, roots []string) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:    uuid.NewString(),
		Failures: make([]types.Failure, 0),
	}
	log := idx.logger.With().Str("run_id", result.RunID).Logger()
	log.Info().Strs("roots", roots).Int("workers", idx.workers).Msg("index run started")

	var mu sync.Mutex // Protects result
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	var walkErr error
	for entry, err := range idx.walker.Walk(gctx, roots) {
		if err != nil {
			if gctx.Err() != nil {
				walkErr = err
				break
			}
			mu.Lock()
			result.Failures = append(result.Failures, types.Failure{Path: entry.Path, Error: err.Error()})
			mu.Unlock()
			log.Warn().Err(err).Str("path", entry.Path).Msg("walk error")
			continue
		}

		g.Go(func() error {
			added, err := idx.processEntry(gctx, entry)
			if err != nil {
				var fe *fileError
				if !errors.As(err, &fe) {
					return err
				}
				mu.Lock()
				result.Failures = append(result.Failures, types.Failure{Path: entry.Path, Error: fe.Error()})
				mu.Unlock()
				log.Warn().Err(fe.err).Str("path", entry.Path).Msg("failed to index file")
				return nil
			}
			mu.Lock()
			result.Processed++
			result.MemoriesAdded += added
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil && walkErr != nil {
		err = walkErr
	}
	if err == nil {
		err = ctx.Err()
	}
	result.Duration = time.Since(start)

	if err != nil {
		log.Error().Err(err).Int("processed", result.Processed).Msg("index run aborted")
		return result, dgerr.Wrap(err, dgerr.CodeIndexRunFailure, "index run aborted")
	}

	log.Info().
		Int("processed", result.Processed).
		Int("failures", len(result.Failures)).
		Int("memories_added", result.MemoriesAdded).
		Dur("duration", result.Duration).
		Msg("index run complete")

	idx.hooksMu.Lock()
	hooks := append([]func(*Result){}, idx.hooks...)
	idx.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(result)
	}

	return result, nil
}

// fileError marks a failure confined to one file
type fileError struct {
	err error
}

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// processEntry indexes one file under the per-file timeout. Errors that
// should abort the run are returned bare; everything else is a *fileError.
func (idx *Indexer) processEntry(ctx context.Context, entry walker.Entry) (int, error) {
	fileCtx, cancel := context.WithTimeout(ctx, idx.fileTimeout)
	defer cancel()

	added, err := idx.indexFile(fileCtx, entry)
	if err == nil {
		return added, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if storage.IsConnectionError(err) {
		return 0, fmt.Errorf("database unavailable while indexing %s: %w", entry.Path, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", idx.fileTimeout, err)
	}
	return 0, &fileError{err: err}
}

// extraction is the CPU-bound half of indexing a file
type extraction struct {
	ex      *types.Extraction
	entries []types.LogEntry
	err     error
}

// extract reads and parses a file in its own goroutine so that a stuck
// parse cannot hold the run past the file deadline.
func (idx *Indexer) extract(ctx context.Context, entry walker.Entry) (*types.Extraction, []types.LogEntry, error) {
	done := make(chan extraction, 1)
	go func() {
		raw, err := idx.readFile(entry.Path)
		if err != nil {
			done <- extraction{err: fmt.Errorf("failed to read file: %w", err)}
			return
		}
		ex, err := idx.parser.Parse(raw, entry.Path)
		if err != nil {
			done <- extraction{err: err}
			return
		}
		var entries []types.LogEntry
		if entry.Category == types.DocMemory {
			if entries, err = idx.chunker.Split(raw); err != nil {
				done <- extraction{err: fmt.Errorf("failed to split session log: %w", err)}
				return
			}
		}
		done <- extraction{ex: ex, entries: entries}
	}()

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case r := <-done:
		return r.ex, r.entries, r.err
	}
}

// indexFile extracts one file and stores it in a single transaction.
// It returns the number of memories appended.
func (idx *Indexer) indexFile(ctx context.Context, entry walker.Entry) (int, error) {
	ex, entries, err := idx.extract(ctx, entry)
	if err != nil {
		return 0, err
	}

	key := idx.DocumentKey(entry)

	var task *storage.Task
	if entry.Category == types.DocTask {
		status := ResolveStatus(ex, key)
		ex.SetDerived(types.MetaStatus, types.StringValue(string(status)))
		task = &storage.Task{
			FilePath:    key,
			Title:       ex.Title,
			Description: ex.Metadata.GetString(types.MetaDescription),
			Status:      status,
			Priority:    ex.Priority,
			Kind:        ResolveKind(ex, key),
		}
	}

	doc := &storage.Document{
		Path:     key,
		Title:    ex.Title,
		Content:  ex.Content,
		Type:     entry.Category,
		Metadata: ex.Metadata,
	}

	if entry.Category == types.DocMemory {
		if day, ok := types.SessionDate(key); ok {
			chunker.Anchor(entries, day)
		}
	}

	return storage.RetryBusy(ctx, idx.retry, func() (int, error) {
		return idx.persist(ctx, entry.Category, doc, task, ex.Tags, entries)
	})
}

// persist writes one extracted file in a single transaction and returns the
// number of memories appended.
func (idx *Indexer) persist(ctx context.Context, category types.DocType, doc *storage.Document,
	task *storage.Task, tags []string, entries []types.LogEntry) (int, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpsertDocument(ctx, doc); err != nil {
		return 0, err
	}

	tagIDs, err := resolveTags(ctx, tx, tags)
	if err != nil {
		return 0, err
	}
	if err := tx.SetDocumentTags(ctx, doc.ID, tagIDs); err != nil {
		return 0, err
	}

	if task != nil {
		if err := tx.UpsertTask(ctx, task); err != nil {
			return 0, err
		}
		if err := tx.SetTaskTags(ctx, task.ID, tagIDs); err != nil {
			return 0, err
		}
	}

	added := 0
	if category == types.DocMemory {
		if added, err = appendNewMemories(ctx, tx, doc.ID, entries); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// resolveTags get-or-creates every tag name and returns the IDs.
func resolveTags(ctx context.Context, tx storage.Tx, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		tag, err := tx.GetOrCreateTag(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// appendNewMemories appends the entries not already stored for the
// document. Memories are append-only, so an unchanged log adds nothing.
func appendNewMemories(ctx context.Context, tx storage.Tx, docID int64, entries []types.LogEntry) (int, error) {
	existing, err := tx.ListMemories(ctx, docID)
	if err != nil {
		return 0, err
	}
	seen := make(map[[32]byte]struct{}, len(existing)+len(entries))
	for _, m := range existing {
		seen[chunker.EntryHash(m.Heading, m.Content, m.EntryTime)] = struct{}{}
	}

	added := 0
	for _, e := range entries {
		h := chunker.EntryHash(e.Heading, e.Content, e.EntryTime)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}

		mem := &storage.Memory{
			DocumentID: docID,
			Heading:    e.Heading,
			Content:    e.Content,
			EntryTime:  e.EntryTime,
		}
		if err := tx.AppendMemory(ctx, mem); err != nil {
			return 0, err
		}
		added++
	}
	return added, nil
}

// DocumentKey returns the slash-separated path of a file relative to the
// base directory. Files outside the base directory are keyed by their root's
// name and their path within it.
func (idx *Indexer) DocumentKey(entry walker.Entry) string {
	p := entry.Path
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if rel, err := filepath.Rel(idx.baseDir, p); err == nil && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	rel, err := filepath.Rel(entry.Root, entry.Path)
	if err != nil {
		return filepath.ToSlash(entry.Path)
	}
	return path.Join(filepath.Base(entry.Root), filepath.ToSlash(rel))
}

// ResolveStatus applies status precedence: an explicit valid task-status,
// then a status fragment anywhere in the key, then ACTIVE.
func ResolveStatus(ex *types.Extraction, key string) types.TaskStatus {
	if ex.HasExplicitStatus() {
		return ex.Status
	}
	lower := strings.ToLower(key)
	for _, sd := range statusDirs {
		if strings.Contains(lower, sd.fragment) {
			return sd.status
		}
	}
	return types.StatusActive
}

// ResolveKind reads task-type metadata, then falls back to an "agent"
// directory segment, then PROJECT.
func ResolveKind(ex *types.Extraction, key string) types.TaskKind {
	if kind, ok := types.ParseTaskKind(ex.Metadata.GetString(types.MetaTaskType)); ok {
		return kind
	}
	for _, seg := range strings.Split(strings.ToLower(path.Dir(key)), "/") {
		if strings.Contains(seg, "agent") {
			return types.TaskAgent
		}
	}
	return types.TaskProject
}
