package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/searcher"
	"github.com/dshills/docgraph/internal/storage"
	"github.com/dshills/docgraph/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docgraph"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Searcher answers search requests
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// GraphSource builds the document graph
type GraphSource interface {
	Graph(ctx context.Context) (*types.Graph, error)
}

// IndexRunner runs index passes over the configured roots
type IndexRunner interface {
	Index(ctx context.Context, roots []string) (*indexer.Result, error)
	Running() bool
}

// Deps are the services the tools call into
type Deps struct {
	Store      storage.Storage
	Searcher   Searcher
	Graph      GraphSource
	Indexer    IndexRunner
	IndexRoots []string
	Logger     *zerolog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  IndexRunner
	searcher Searcher
	graph    GraphSource
	roots    []string
	logger   zerolog.Logger
}

// NewServer creates a new MCP server instance. The caller owns the store.
func NewServer(deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Searcher == nil || deps.Graph == nil || deps.Indexer == nil {
		return nil, errors.New("mcp: server dependencies are incomplete")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  deps.Store,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		graph:    deps.Graph,
		roots:    deps.IndexRoots,
		logger:   logger.Component("mcp"),
	}
	if deps.Logger != nil {
		s.logger = *deps.Logger
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Int("roots", len(s.roots)).Msg("serving mcp over stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getGraphTool(), s.handleGetGraph)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
