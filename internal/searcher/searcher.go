package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/storage"
	dgerr "github.com/dshills/docgraph/pkg/errors"
	"github.com/dshills/docgraph/pkg/types"
)

// SearchMode defines how query terms are combined
type SearchMode string

const (
	ModeStrict SearchMode = "strict" // Every term must match (AND)
	ModeLoose  SearchMode = "loose"  // Any term may match (OR)
)

// Limits applied when the caller does not configure them
const (
	DefaultLimit    = 10
	MaxLimit        = 20
	DefaultCacheTTL = 5 * time.Minute
	defaultCacheLen = 100
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	Mode     SearchMode
	UseCache bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult `json:"results"`
	TotalResults int                  `json:"total_results"`
	Mode         SearchMode           `json:"mode"`
	Fallback     bool                 `json:"fallback"` // Substring search served the results
	Duration     time.Duration        `json:"duration"`
	CacheHit     bool                 `json:"cache_hit"`
}

// Config tunes a Searcher
type Config struct {
	DefaultLimit int
	MaxLimit     int
	CacheSize    int // Zero disables caching
	CacheTTL     time.Duration
	Logger       *zerolog.Logger
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher runs ranked full-text queries with a substring fallback
type Searcher struct {
	storage storage.Storage
	logger  zerolog.Logger

	defaultLimit int
	maxLimit     int
	cacheTTL     time.Duration

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a new Searcher instance. A nil config uses the
// package defaults.
func NewSearcher(store storage.Storage, cfg *Config) *Searcher {
	if cfg == nil {
		cfg = &Config{CacheSize: defaultCacheLen}
	}

	s := &Searcher{
		storage:      store,
		logger:       logger.Component("searcher"),
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		cacheTTL:     cfg.CacheTTL,
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	if s.maxLimit <= 0 {
		s.maxLimit = MaxLimit
	}
	if s.defaultLimit <= 0 || s.defaultLimit > s.maxLimit {
		s.defaultLimit = min(DefaultLimit, s.maxLimit)
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
		if err != nil {
			// Only reachable with a non-positive size
			panic(fmt.Sprintf("failed to create LRU cache: %v", err))
		}
		s.cache = cache
	}

	return s
}

// Search answers a query. A query matching nothing yields an empty result
// set, not an error.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	words := Terms(req.Query)
	response := &SearchResponse{Mode: req.Mode}

	rows, err := s.storage.SearchText(ctx, BuildMatchQuery(words, req.Mode), req.Limit)
	switch {
	case err != nil:
		s.logger.Debug().Err(err).Str("query", req.Query).Msg("full-text search failed, falling back")
	case len(rows) == 0:
		s.logger.Debug().Str("query", req.Query).Msg("full-text search empty, falling back")
	}

	if err != nil || len(rows) == 0 {
		rows, err = s.storage.SearchLike(ctx, words, req.Limit)
		if err != nil {
			s.logger.Error().Err(err).Str("query", req.Query).Msg("fallback search failed")
			return nil, dgerr.Wrap(err, dgerr.CodeSearchBackendFailure, "search failed",
				dgerr.FieldQuery(req.Query))
		}
		response.Fallback = true
	}

	response.Results = buildResults(rows, words)
	response.TotalResults = len(response.Results)
	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// buildResults converts store rows to ranked results, best first.
func buildResults(rows []storage.TextResult, words []string) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, types.SearchResult{
			Title:   row.Title,
			Path:    row.Path,
			Excerpt: Excerpt(row.Content, words),
			Rank:    max(0, -row.BM25Score),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank > results[j].Rank
	})
	return results
}

// validateRequest rejects empty queries and applies limit defaults
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" || len(Terms(req.Query)) == 0 {
		return dgerr.New(dgerr.CodeSearchQueryInvalid, "query cannot be empty")
	}

	if req.Limit <= 0 {
		req.Limit = s.defaultLimit
	}
	if req.Limit > s.maxLimit {
		req.Limit = s.maxLimit
	}

	switch req.Mode {
	case "":
		req.Mode = ModeStrict
	case ModeStrict, ModeLoose:
	default:
		return dgerr.New(dgerr.CodeSearchQueryInvalid, "unsupported search mode",
			dgerr.Field("mode", string(req.Mode)))
	}

	return nil
}

// checkCache looks up a cached response, returning nil on miss or expiry
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	if s.cache == nil {
		return nil
	}
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	if s.cache == nil {
		return
	}
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%s|%d", strings.Join(Terms(req.Query), " "), req.Mode, req.Limit)
	return sha256.Sum256([]byte(key))
}

// InvalidateCache drops every cached response. Called after indexing since
// any document may have changed.
func (s *Searcher) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
