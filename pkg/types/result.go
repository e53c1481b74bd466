package types

import "time"

// SearchResult is a single ranked hit returned by the search engine
type SearchResult struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Excerpt string  `json:"excerpt"`
	Rank    float64 `json:"rank"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Path == "" {
		return ErrMissingPath
	}
	if sr.Rank < 0 {
		return ErrInvalidRank
	}
	return nil
}

// GraphNode is a document rendered as a graph vertex
type GraphNode struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Type      DocType   `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphLink is an inferred reference rendered as a graph edge
type GraphLink struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// Graph is the node/link view of the document set
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Failure records a file the indexer could not process
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
