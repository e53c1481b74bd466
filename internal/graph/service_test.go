package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/pkg/types"
)

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func upsert(t *testing.T, store storage.Storage, path, title, content string) *storage.Document {
	t.Helper()
	d := &storage.Document{Path: path, Title: title, Content: content, Type: types.DocDocumentation}
	require.NoError(t, store.UpsertDocument(context.Background(), d))
	return d
}

func TestInferencer_Run(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	a := upsert(t, store, "docs/a.html", "Alpha", "links to Beta")
	b := upsert(t, store, "docs/b.html", "Beta", "plain")

	inf := NewInferencer(store, nil)
	var hooked *RunResult
	inf.OnComplete(func(r *RunResult) { hooked = r })

	res, err := inf.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 2, res.References) // title a->b, directory both ways
	assert.NotEmpty(t, res.RunID)
	assert.Same(t, res, hooked)

	refs, err := store.ListReferences(ctx)
	require.NoError(t, err)
	got := edges(refs)
	assert.InDelta(t, WeightTitle+WeightDirectory, got[[2]int64{a.ID, b.ID}].Weight, 1e-9)
	assert.InDelta(t, WeightDirectory, got[[2]int64{b.ID, a.ID}].Weight, 1e-9)

	// A second run replaces rather than accumulates
	_, err = inf.Run(ctx)
	require.NoError(t, err)
	refs, err = store.ListReferences(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestService_GraphCached(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	upsert(t, store, "docs/a.html", "Alpha", "see Beta")
	upsert(t, store, "notes/b.html", "Beta", "")

	svc := NewService(store, time.Hour)
	g, err := svc.Graph(ctx)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Links, 1)
	assert.Equal(t, TypeTitle, g.Links[0].Type)

	upsert(t, store, "docs/c.html", "Gamma", "")
	cached, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Nodes, 2)

	svc.Invalidate()
	fresh, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Nodes, 3)
}

func TestService_GraphStoreFailure(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Close())

	_, err := NewService(store, 0).Graph(context.Background())
	require.Error(t, err)
}
