package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/internal/graph"
	"github.com/dshills/docgraph/internal/indexer"
)

type fakeIndexer struct {
	running atomic.Bool
	runs    atomic.Int32
	block   chan struct{}

	mu    sync.Mutex
	roots []string
}

func (f *fakeIndexer) Index(ctx context.Context, roots []string) (*indexer.Result, error) {
	f.runs.Add(1)
	f.mu.Lock()
	f.roots = roots
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &indexer.Result{RunID: "idx"}, nil
}

func (f *fakeIndexer) Running() bool { return f.running.Load() }

type fakeInferencer struct {
	runs atomic.Int32
	err  error
}

func (f *fakeInferencer) Run(ctx context.Context) (*graph.RunResult, error) {
	f.runs.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &graph.RunResult{RunID: "inf", References: 3}, nil
}

type fakePruner struct {
	keep    int
	removed int
	calls   atomic.Int32
}

func (f *fakePruner) PruneSessionLogs(ctx context.Context, keep int) (int, error) {
	f.calls.Add(1)
	f.keep = keep
	return f.removed, nil
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Index: "every minute"}, &fakeIndexer{}, &fakeInferencer{}, &fakePruner{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index")
}

func TestNew_EmptyScheduleDisablesJob(t *testing.T) {
	s, err := New(Config{Index: "*/15 * * * *", Retention: "0 3 * * *"},
		&fakeIndexer{}, &fakeInferencer{}, &fakePruner{})
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 2)
}

func TestRunJob(t *testing.T) {
	idx := &fakeIndexer{}
	inf := &fakeInferencer{}
	pr := &fakePruner{removed: 2}
	var pruned int
	s, err := New(Config{
		Roots:           []string{"/notes/tasks"},
		KeepSessionLogs: 30,
		OnPrune:         func(n int) { pruned = n },
	}, idx, inf, pr)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.RunJob(ctx, JobIndex))
	require.NoError(t, s.RunJob(ctx, JobInfer))
	require.NoError(t, s.RunJob(ctx, JobRetention))

	assert.Equal(t, int32(1), idx.runs.Load())
	assert.Equal(t, []string{"/notes/tasks"}, idx.roots)
	assert.Equal(t, int32(1), inf.runs.Load())
	assert.Equal(t, 30, pr.keep)
	assert.Equal(t, 2, pruned)

	assert.Error(t, s.RunJob(ctx, "compact"))
}

func TestRunJob_SkipsWhileIndexing(t *testing.T) {
	idx := &fakeIndexer{}
	idx.running.Store(true)
	inf := &fakeInferencer{}
	pr := &fakePruner{}
	s, err := New(Config{}, idx, inf, pr)
	require.NoError(t, err)

	ctx := context.Background()
	for _, job := range []string{JobIndex, JobInfer, JobRetention} {
		require.NoError(t, s.RunJob(ctx, job))
	}

	assert.Equal(t, int32(0), idx.runs.Load())
	assert.Equal(t, int32(0), inf.runs.Load())
	assert.Equal(t, int32(0), pr.calls.Load())
}

func TestRunJob_FailureIsContained(t *testing.T) {
	inf := &fakeInferencer{err: errors.New("boom")}
	s, err := New(Config{}, &fakeIndexer{}, inf, &fakePruner{})
	require.NoError(t, err)

	assert.NoError(t, s.RunJob(context.Background(), JobInfer))
	assert.Equal(t, int32(1), inf.runs.Load())
}

func TestRetention_NoHookWhenNothingRemoved(t *testing.T) {
	called := false
	s, err := New(Config{OnPrune: func(int) { called = true }}, &fakeIndexer{}, &fakeInferencer{}, &fakePruner{})
	require.NoError(t, err)

	require.NoError(t, s.RunJob(context.Background(), JobRetention))
	assert.False(t, called)
}

func TestStartStop(t *testing.T) {
	idx := &fakeIndexer{block: make(chan struct{})}
	s, err := New(Config{Index: "@every 50ms"}, idx, &fakeInferencer{}, &fakePruner{})
	require.NoError(t, err)

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return idx.runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	// Later ticks are skipped while the first run is blocked
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), idx.runs.Load())

	// The blocked run sees its context cancelled; Stop returns once it exits.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
