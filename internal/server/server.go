package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/searcher"
	"github.com/dshills/docgraph/internal/storage"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// BaseDir anchors relative document paths. Roots lists the directories
	// documents may be served from; IndexRoots are handed to index runs.
	BaseDir    string
	Roots      []string
	IndexRoots []string
}

// Searcher answers search requests
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// GraphSource builds the document graph
type GraphSource interface {
	Graph(ctx context.Context) (*types.Graph, error)
}

// IndexRunner starts index runs. Start claims the run before returning
// and reports a conflicting run as an error.
type IndexRunner interface {
	Index(ctx context.Context, roots []string) (*indexer.Result, error)
	Start(ctx context.Context, roots []string, done func(*indexer.Result, error)) error
}

// Deps are the services behind the HTTP surface
type Deps struct {
	Store    storage.Storage
	Searcher Searcher
	Graph    GraphSource
	Indexer  IndexRunner
	Logger   *zerolog.Logger
}

// Server wraps a chi router and the HTTP server.
type Server struct {
	router chi.Router
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	// bgCtx bounds background index runs; Start replaces it with its own
	bgCtx context.Context

	baseDir   string
	roots     []string // Cleaned absolute roots
	realRoots []string // roots with symlinks resolved
}

// New creates a Server with routes, CORS and request logging.
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, dgerr.New(dgerr.CodeConfigInvalid, "listen address is required")
	}
	if deps.Store == nil || deps.Searcher == nil || deps.Graph == nil || deps.Indexer == nil {
		return nil, dgerr.New(dgerr.CodeConfigInvalid, "server dependencies are incomplete")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger.Component("server"), bgCtx: context.Background()}
	if deps.Logger != nil {
		s.logger = *deps.Logger
	}

	base := cfg.BaseDir
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolving base dir: %w", err)
	}
	s.baseDir = abs

	for _, root := range cfg.Roots {
		r := s.resolve(root)
		s.roots = append(s.roots, r)
		if resolved, err := filepath.EvalSymlinks(r); err == nil {
			s.realRoots = append(s.realRoots, resolved)
		} else {
			s.realRoots = append(s.realRoots, r)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleDocuments)
		r.Get("/documents/content", s.handleDocumentContent)
		r.Get("/tasks", s.handleTasks)
		r.Get("/search", s.handleSearch)
		r.Get("/graph", s.handleGraph)
		r.Post("/index", s.handleIndex)
	})

	s.router = r
	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.bgCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return <-errCh
}

// requestLogger logs one line per request at debug, or warn for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		ev := s.logger.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
