package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/searcher"
	"github.com/dshills/docgraph/internal/storage"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// Document query limits
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDocumentContent serves a source file as text/html. The path must
// resolve under one of the configured roots; anything else is forbidden
// whether or not it exists.
func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if strings.TrimSpace(raw) == "" {
		s.writeError(w, r, dgerr.New(dgerr.CodeDocumentPathInvalid, "path parameter is required"))
		return
	}

	abs, err := s.allowedPath(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, r, dgerr.New(dgerr.CodeDocumentNotFound, "document not found"))
			return
		}
		s.writeError(w, r, dgerr.Wrap(err, dgerr.CodeServerInternalFailure, "failed to read document",
			dgerr.FieldPath(abs)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// allowedPath resolves p against the base directory and checks it against
// the roots, first lexically and then with symlinks resolved.
func (s *Server) allowedPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", dgerr.New(dgerr.CodeDocumentPathInvalid, "invalid path")
	}
	abs := s.resolve(filepath.FromSlash(p))
	if !within(abs, s.roots) {
		return "", dgerr.New(dgerr.CodeDocumentPathForbidden, "access denied", dgerr.FieldPath(p))
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && !within(resolved, s.realRoots) {
		return "", dgerr.New(dgerr.CodeDocumentPathForbidden, "access denied", dgerr.FieldPath(p))
	}
	return abs, nil
}

func (s *Server) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.baseDir, p)
}

func within(p string, roots []string) bool {
	for _, root := range roots {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// taskEntry is one row of the task listing
type taskEntry struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// handleTasks lists tasks in one status category as JSON or an HTML
// fragment.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("status")
	status, ok := types.StatusFromCategory(category)
	if !ok {
		s.writeError(w, r, dgerr.New(dgerr.CodeDocumentQueryInvalid, "status must be one of active, pending, resolved, archived",
			dgerr.Field("status", category)))
		return
	}

	tasks, err := s.deps.Store.ListTasksByStatus(r.Context(), status)
	if err != nil {
		s.writeError(w, r, dgerr.Wrap(err, dgerr.CodeStoreDatabaseFailure, "failed to list tasks"))
		return
	}

	entries := make([]taskEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, taskEntry{Title: t.Title, Path: t.FilePath})
	}

	if wantsHTML(r) {
		body, err := renderTaskList(status, entries)
		if err != nil {
			s.writeError(w, r, dgerr.Wrap(err, dgerr.CodeServerInternalFailure, "failed to render tasks"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func wantsHTML(r *http.Request) bool {
	switch r.URL.Query().Get("format") {
	case "html":
		return true
	case "json":
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// documentView is the JSON shape of a document in query results
type documentView struct {
	ID        int64          `json:"id"`
	Path      string         `json:"path"`
	Title     string         `json:"title"`
	Type      types.DocType  `json:"type"`
	Metadata  types.Metadata `json:"metadata"`
	Tags      []string       `json:"tags"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type documentPage struct {
	Total     int            `json:"total"`
	Documents []documentView `json:"documents"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDocumentFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.deps.Store.QueryDocuments(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, dgerr.Wrap(err, dgerr.CodeStoreDatabaseFailure, "failed to query documents"))
		return
	}

	out := documentPage{
		Total:     page.Total,
		Documents: make([]documentView, 0, len(page.Documents)),
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}
	for _, d := range page.Documents {
		tags := d.Tags
		if tags == nil {
			tags = []string{}
		}
		out.Documents = append(out.Documents, documentView{
			ID:        d.ID,
			Path:      d.Path,
			Title:     d.Title,
			Type:      d.Type,
			Metadata:  d.Metadata,
			Tags:      tags,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func parseDocumentFilter(r *http.Request) (storage.DocumentFilter, error) {
	q := r.URL.Query()
	filter := storage.DocumentFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Limit:  defaultPageSize,
	}

	if v := q.Get("type"); v != "" {
		filter.Type = types.DocType(strings.ToLower(v))
		if !filter.Type.Valid() {
			return filter, dgerr.New(dgerr.CodeDocumentQueryInvalid, "unknown document type", dgerr.Field("type", v))
		}
	}
	if v := q.Get("status"); v != "" {
		st, ok := types.StatusFromCategory(v)
		if !ok {
			if st, ok = types.ParseStatus(v); !ok {
				return filter, dgerr.New(dgerr.CodeDocumentQueryInvalid, "unknown status", dgerr.Field("status", v))
			}
		}
		filter.Status = st
	}
	for _, tag := range strings.Split(q.Get("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			filter.Tags = append(filter.Tags, tag)
		}
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), defaultPageSize, 1, maxPageSize); err != nil {
		return filter, dgerr.New(dgerr.CodeDocumentQueryInvalid, "invalid limit", dgerr.Field("limit", q.Get("limit")))
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0, 0, -1); err != nil {
		return filter, dgerr.New(dgerr.CodeDocumentQueryInvalid, "invalid offset", dgerr.Field("offset", q.Get("offset")))
	}
	return filter, nil
}

// intParam parses v, returning def when empty. Values above hi (when hi is
// non-negative) are clamped; values below lo are an error.
func intParam(v string, def, lo, hi int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < lo {
		return 0, strconv.ErrRange
	}
	if hi >= 0 && n > hi {
		n = hi
	}
	return n, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 0, 0, -1)
	if err != nil {
		s.writeError(w, r, dgerr.New(dgerr.CodeSearchQueryInvalid, "invalid limit", dgerr.Field("limit", q.Get("limit"))))
		return
	}

	resp, err := s.deps.Searcher.Search(r.Context(), searcher.SearchRequest{
		Query:    q.Get("q"),
		Limit:    limit,
		Mode:     searcher.SearchMode(q.Get("mode")),
		UseCache: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Results)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Graph.Graph(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleIndex starts an index run in the background and answers 202, or
// with ?wait=true runs it inline and returns the result.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		res, err := s.deps.Indexer.Index(r.Context(), s.cfg.IndexRoots)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	err := s.deps.Indexer.Start(s.bgCtx, s.cfg.IndexRoots, func(_ *indexer.Result, err error) {
		if err != nil {
			s.logger.Warn().Err(err).Msg("background index run failed")
		}
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
