// Package searcher answers ranked full-text queries over indexed documents.
//
// # Strategy
//
// Queries run in two tiers:
//
//  1. Full-text: whitespace-separated terms become quoted prefix matches
//     joined with AND (ModeStrict, the default) or OR (ModeLoose), ranked
//     by bm25 with titles weighted ten times body text.
//  2. Substring: when the full-text query fails or finds nothing, a
//     case-insensitive LIKE search over title and content serves the
//     request with rank 0.
//
// Only a failure of the second tier reaches the caller.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, &searcher.Config{CacheSize: 100})
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "session log"})
//	for _, r := range resp.Results {
//	    fmt.Println(r.Rank, r.Path, r.Excerpt)
//	}
//
// Empty queries are rejected with CodeSearchQueryInvalid before the store is
// touched. Limits default to 10 and are capped at 20.
//
// # Excerpts
//
// Each result carries a window of about 200 characters centered on the
// densest cluster of term matches, with "..." marking cut edges.
//
// # Caching
//
// Requests with UseCache are memoized in an LRU keyed by a SHA-256 of the
// normalized query, mode and limit. Entries expire after Config.CacheTTL;
// InvalidateCache drops them all and is wired to index completion.
package searcher
