package graph

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/docgraph/internal/storage"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// DefaultCacheTTL bounds how stale a served graph can be
const DefaultCacheTTL = time.Minute

const graphKey = "graph"

// Service serves the node/link view of the document set. Graphs are
// inferred over the current documents at request time and cached for the
// configured TTL, so a response may lag an index run by at most that long
// unless Invalidate is called.
type Service struct {
	storage storage.Storage
	cache   *expirable.LRU[string, *types.Graph]
}

// NewService creates a graph service. ttl <= 0 uses DefaultCacheTTL.
func NewService(store storage.Storage, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		storage: store,
		cache:   expirable.NewLRU[string, *types.Graph](1, nil, ttl),
	}
}

// Graph returns every document as a node and every inferred reference as a
// link.
func (s *Service) Graph(ctx context.Context) (*types.Graph, error) {
	if g, ok := s.cache.Get(graphKey); ok {
		return g, nil
	}

	docs, err := s.storage.ListDocuments(ctx)
	if err != nil {
		return nil, dgerr.Wrap(err, dgerr.CodeGraphBuildFailure, "failed to load documents")
	}

	g := Build(docs, InferReferences(docs))
	s.cache.Add(graphKey, g)
	return g, nil
}

// Invalidate drops the cached graph.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

// Build renders documents and references as a graph.
func Build(docs []*storage.Document, refs []storage.Reference) *types.Graph {
	g := &types.Graph{
		Nodes: make([]types.GraphNode, 0, len(docs)),
		Links: make([]types.GraphLink, 0, len(refs)),
	}
	for _, d := range docs {
		g.Nodes = append(g.Nodes, types.GraphNode{
			ID:        d.ID,
			Title:     d.Title,
			Path:      d.Path,
			Type:      d.Type,
			CreatedAt: d.CreatedAt,
		})
	}
	for _, r := range refs {
		g.Links = append(g.Links, types.GraphLink{
			Source: r.SourceID,
			Target: r.TargetID,
			Type:   r.Type,
			Weight: r.Weight,
		})
	}
	return g
}
