package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/storage"
)

// RunResult summarizes one inference run
type RunResult struct {
	RunID      string        `json:"run_id"`
	Documents  int           `json:"documents"`
	References int           `json:"references"`
	Duration   time.Duration `json:"duration"`
}

// Inferencer recomputes and stores the reference set as a batch job.
// It is never run from a request handler.
type Inferencer struct {
	storage storage.Storage
	logger  zerolog.Logger

	mu    sync.Mutex // Serializes runs
	hooks []func(*RunResult)
}

// NewInferencer creates an Inferencer. A nil logger uses the global one.
func NewInferencer(store storage.Storage, log *zerolog.Logger) *Inferencer {
	inf := &Inferencer{storage: store, logger: logger.Component("inferencer")}
	if log != nil {
		inf.logger = *log
	}
	return inf
}

// OnComplete registers fn to run after each successful run.
func (inf *Inferencer) OnComplete(fn func(*RunResult)) {
	inf.mu.Lock()
	defer inf.mu.Unlock()
	inf.hooks = append(inf.hooks, fn)
}

// Run loads every document, infers references and replaces the stored set.
func (inf *Inferencer) Run(ctx context.Context) (*RunResult, error) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	start := time.Now()
	res := &RunResult{RunID: uuid.NewString()}

	docs, err := inf.storage.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs := InferReferences(docs)
	if err := inf.storage.ReplaceReferences(ctx, refs); err != nil {
		return nil, fmt.Errorf("failed to store references: %w", err)
	}

	res.Documents = len(docs)
	res.References = len(refs)
	res.Duration = time.Since(start)

	inf.logger.Info().
		Str("run_id", res.RunID).
		Int("documents", res.Documents).
		Int("references", res.References).
		Dur("duration", res.Duration).
		Msg("inference run complete")

	for _, hook := range inf.hooks {
		hook(res)
	}
	return res, nil
}
