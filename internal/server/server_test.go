package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docgraph/internal/graph"
	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/searcher"
	"github.com/dshills/docgraph/internal/server"
	"github.com/dshills/docgraph/internal/storage"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

type fakeIndexer struct {
	running atomic.Bool
	calls   atomic.Int32
}

func (f *fakeIndexer) Index(ctx context.Context, roots []string) (*indexer.Result, error) {
	if f.running.Load() {
		return nil, dgerr.Wrap(indexer.ErrIndexInProgress, dgerr.CodeIndexRunConflict, "index run rejected")
	}
	f.calls.Add(1)
	return &indexer.Result{RunID: "run-1", Processed: len(roots), Failures: []types.Failure{}}, nil
}

// Start claims the run synchronously, the way the real indexer does.
func (f *fakeIndexer) Start(ctx context.Context, roots []string, done func(*indexer.Result, error)) error {
	if !f.running.CompareAndSwap(false, true) {
		return dgerr.Wrap(indexer.ErrIndexInProgress, dgerr.CodeIndexRunConflict, "index run rejected")
	}
	go func() {
		f.calls.Add(1)
		res := &indexer.Result{RunID: "run-2", Processed: len(roots), Failures: []types.Failure{}}
		f.running.Store(false)
		if done != nil {
			done(res, nil)
		}
	}()
	return nil
}

type failingSearcher struct{}

func (failingSearcher) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	return nil, dgerr.Wrap(errors.New("sqlite: disk I/O error at /var/secret.db"),
		dgerr.CodeSearchBackendFailure, "search backend failed")
}

type fixture struct {
	base    string
	store   *storage.SQLiteStorage
	indexer *fakeIndexer
	handler http.Handler
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixture(t *testing.T, mutate func(*server.Deps)) *fixture {
	t.Helper()

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "tasks", "active-tasks", "alpha.html"),
		"<html><body><h1>Alpha</h1><p>alpha body</p></body></html>")
	writeFile(t, filepath.Join(base, "docs", "guide.html"), "<p>guide</p>")

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, d := range []*storage.Document{
		{Path: "tasks/active-tasks/alpha.html", Title: "Alpha", Content: "alpha body", Type: types.DocTask},
		{Path: "tasks/pending-tasks/beta.html", Title: "Beta", Content: "beta body", Type: types.DocTask},
		{Path: "memories/2026/01/02.html", Title: "Session", Content: "notes about alpha", Type: types.DocMemory},
	} {
		require.NoError(t, store.UpsertDocument(ctx, d))
	}
	require.NoError(t, store.UpsertTask(ctx, &storage.Task{
		FilePath: "tasks/active-tasks/alpha.html", Title: "Alpha", Status: types.StatusActive,
	}))
	require.NoError(t, store.UpsertTask(ctx, &storage.Task{
		FilePath: "tasks/pending-tasks/beta.html", Title: "Beta <b>", Status: types.StatusPending,
	}))

	idx := &fakeIndexer{}
	deps := server.Deps{
		Store:    store,
		Searcher: searcher.NewSearcher(store, nil),
		Graph:    graph.NewService(store, time.Minute),
		Indexer:  idx,
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		BaseDir:    base,
		Roots:      []string{"tasks", "memories"},
		IndexRoots: []string{filepath.Join(base, "tasks")},
	}, deps)
	require.NoError(t, err)

	return &fixture{base: base, store: store, indexer: idx, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestNew_Validation(t *testing.T) {
	_, err := server.New(server.Config{}, server.Deps{})
	require.Error(t, err)
	assert.True(t, dgerr.IsInvalidInput(err))

	_, err = server.New(server.Config{ListenAddr: ":0"}, server.Deps{})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDocumentContent(t *testing.T) {
	f := newFixture(t, nil)

	outside := filepath.Join(t.TempDir(), "secret.html")
	writeFile(t, outside, "secret")
	require.NoError(t, os.Symlink(outside, filepath.Join(f.base, "tasks", "link.html")))

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  dgerr.Code
	}{
		{"served", "tasks/active-tasks/alpha.html", http.StatusOK, ""},
		{"missing under root", "tasks/active-tasks/none.html", http.StatusNotFound, dgerr.CodeDocumentNotFound},
		{"traversal", "tasks/../../etc/passwd", http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"existing file outside roots", "docs/guide.html", http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"missing file outside roots", "docs/none.html", http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"absolute outside", outside, http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"symlink escaping root", "tasks/link.html", http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"root prefix sibling", "tasks-old/x.html", http.StatusForbidden, dgerr.CodeDocumentPathForbidden},
		{"empty", "", http.StatusBadRequest, dgerr.CodeDocumentPathInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/documents/content?path="+url.QueryEscape(tt.path))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr == "" {
				assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), "<h1>Alpha</h1>")
				return
			}
			code, _ := decodeError(t, rec)
			assert.Equal(t, string(tt.wantErr), code)
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}

func TestTasks_JSON(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/tasks?status=active")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []struct {
		Title string `json:"title"`
		Path  string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Alpha", tasks[0].Title)
	assert.Equal(t, "tasks/active-tasks/alpha.html", tasks[0].Path)

	rec = f.do(t, http.MethodGet, "/api/tasks?status=resolved")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTasks_HTML(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/tasks?status=pending&format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<section class="task-list" data-status="PENDING">`), body)
	assert.Contains(t, body, "Beta &lt;b&gt;")
	assert.Contains(t, body, "<code>tasks/pending-tasks/beta.html</code>")
	assert.NotContains(t, body, "Alpha")
}

func TestTasks_AcceptHeader(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=active", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<ul>")
}

func TestTasks_BadStatus(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/tasks?status=someday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, string(dgerr.CodeDocumentQueryInvalid), code)
}

type documentPage struct {
	Total     int `json:"total"`
	Limit     int `json:"limit"`
	Offset    int `json:"offset"`
	Documents []struct {
		Path    string   `json:"path"`
		Type    string   `json:"type"`
		Tags    []string `json:"tags"`
		Content *string  `json:"content"`
	} `json:"documents"`
}

func TestDocuments_PaginationTotal(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/documents?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var page documentPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Documents, 2)
	for _, d := range page.Documents {
		assert.Nil(t, d.Content)
		assert.NotNil(t, d.Tags)
	}

	rec = f.do(t, http.MethodGet, "/api/documents?limit=2&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Documents, 1)
}

func TestDocuments_Filters(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/documents?type=memory")
	require.Equal(t, http.StatusOK, rec.Code)
	var page documentPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "memory", page.Documents[0].Type)
	assert.Equal(t, 20, page.Limit)

	rec = f.do(t, http.MethodGet, "/api/documents?limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 100, page.Limit)
}

func TestDocuments_InvalidQuery(t *testing.T) {
	f := newFixture(t, nil)

	for _, q := range []string{"type=video", "limit=abc", "limit=0", "offset=-1", "status=someday"} {
		rec := f.do(t, http.MethodGet, "/api/documents?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/search?q=alpha")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []types.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Rank, 0.0)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t, nil)

	for _, q := range []string{"", "%20%20"} {
		rec := f.do(t, http.MethodGet, "/api/search?q="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		code, _ := decodeError(t, rec)
		assert.Equal(t, string(dgerr.CodeSearchQueryInvalid), code)
	}
}

func TestSearch_BackendFailureIsGeneric(t *testing.T) {
	f := newFixture(t, func(d *server.Deps) { d.Searcher = failingSearcher{} })

	rec := f.do(t, http.MethodGet, "/api/search?q=alpha")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	code, msg := decodeError(t, rec)
	assert.Equal(t, string(dgerr.CodeSearchBackendFailure), code)
	assert.Equal(t, "internal server error", msg)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestGraph(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/graph")
	require.Equal(t, http.StatusOK, rec.Code)

	var g types.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 3)
	for _, l := range g.Links {
		assert.Greater(t, l.Weight, 0.0)
		assert.NotEqual(t, l.Source, l.Target)
	}
}

func TestIndex(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/index?wait=true")
	require.Equal(t, http.StatusOK, rec.Code)
	var res indexer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 1, res.Processed)

	rec = f.do(t, http.MethodPost, "/api/index")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return f.indexer.calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestIndex_Conflict(t *testing.T) {
	f := newFixture(t, nil)
	f.indexer.running.Store(true)

	for _, target := range []string{"/api/index", "/api/index?wait=true"} {
		rec := f.do(t, http.MethodPost, target)
		assert.Equal(t, http.StatusConflict, rec.Code, target)
		code, _ := decodeError(t, rec)
		assert.Equal(t, string(dgerr.CodeIndexRunConflict), code)
	}
	assert.Equal(t, int32(0), f.indexer.calls.Load())
}

func TestIndex_RealIndexerConflictIsSynchronous(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "docs", "a.html"), "<p>a</p>")

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx := indexer.New(store, &indexer.Config{BaseDir: base})
	f := newFixture(t, func(d *server.Deps) { d.Indexer = idx })

	release := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, idx.Start(context.Background(), nil, func(*indexer.Result, error) {
		<-release
		close(finished)
	}))

	rec := f.do(t, http.MethodPost, "/api/index")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	<-finished
	assert.Eventually(t, func() bool { return !idx.Running() }, time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodPost, "/api/index?wait=true")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
